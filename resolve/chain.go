package resolve

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Chain tries a list of resolvers in order and remembers what they found.
type Chain struct {
	resolvers []Resolver
	cache     map[string]*Assembly
	log       *zap.Logger
}

// NewChain returns a resolver that consults resolvers in order. A nil logger
// disables logging.
func NewChain(log *zap.Logger, resolvers ...Resolver) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chain{
		resolvers: resolvers,
		cache:     map[string]*Assembly{},
		log:       log,
	}
}

// Resolve returns the first successful resolution. When every resolver
// fails, the error wraps ErrUnresolved and each resolver's failure.
func (c *Chain) Resolve(ref Reference) (*Assembly, error) {
	key := strings.ToLower(ref.Name)
	if a, ok := c.cache[key]; ok {
		return a, nil
	}

	var result *multierror.Error
	for i, r := range c.resolvers {
		a, err := r.Resolve(ref)
		if err != nil {
			c.log.Debug("resolver failed", zap.Int("resolver", i), zap.String("reference", ref.String()), zap.Error(err))
			result = multierror.Append(result, err)
			continue
		}
		c.log.Debug("resolved reference", zap.String("reference", ref.String()), zap.String("path", a.Path))
		c.cache[key] = a
		return a, nil
	}

	if result == nil {
		return nil, fmt.Errorf("%s: no resolvers: %w", ref.Name, ErrUnresolved)
	}
	return nil, fmt.Errorf("%s: %w: %w", ref.Name, ErrUnresolved, result)
}
