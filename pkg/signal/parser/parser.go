package parser

import (
	"errors"

	"github.com/mvberkel/pipster/pkg/signal"
	"github.com/mvberkel/pipster/pkg/signal/parser/goldzone"
	"github.com/mvberkel/pipster/pkg/signal/parser/pipbuilder"
)

// ErrUnknownSource is returned for source names without a registered parser.
// There is deliberately no fallback parser: an unmapped source is a
// configuration error, not something to guess at.
var ErrUnknownSource = errors.New("parser: unknown source")

// NewParser returns the parser registered for a source name. Adding a source
// means adding one case here and one package under parser/.
func NewParser(name string) (signal.Parser, error) {
	switch name {
	case "pipbuilder":
		return pipbuilder.NewParser()
	case "goldzone":
		return goldzone.NewParser()
	default:
		return nil, ErrUnknownSource
	}
}
