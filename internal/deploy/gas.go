package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"
)

// Mint gas defaults.
const (
	DefaultGasPriceWei     int64  = 16_000_000
	DefaultMintGasLimit    uint64 = 1_600_000
	DefaultGasQueryTimeout        = 10 * time.Second
)

// PriceSource suggests a gas price.
type PriceSource interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// GasResolverConfig configures a GasPriceResolver.
type GasResolverConfig struct {
	DefaultPrice *big.Int
	Limit        uint64
	QueryTimeout time.Duration
	Logger       *slog.Logger
	Metrics      *Metrics
}

// GasPriceResolver picks the gas envelope for the mint transaction: the
// network's suggested price when one is available, otherwise a configured
// default.
type GasPriceResolver struct {
	source PriceSource
	config GasResolverConfig
	logger *slog.Logger
}

// NewGasPriceResolver creates a resolver. source may be nil, in which case
// the default price is always used.
func NewGasPriceResolver(source PriceSource, config GasResolverConfig) *GasPriceResolver {
	if config.DefaultPrice == nil || config.DefaultPrice.Sign() <= 0 {
		config.DefaultPrice = big.NewInt(DefaultGasPriceWei)
	}
	if config.Limit == 0 {
		config.Limit = DefaultMintGasLimit
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = DefaultGasQueryTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GasPriceResolver{
		source: source,
		config: config,
		logger: logger,
	}
}

// Resolve never fails: any problem with the network price selects the default.
func (r *GasPriceResolver) Resolve(ctx context.Context) GasParameters {
	price, err := r.networkPrice(ctx)
	if err != nil {
		r.logger.Warn("using default gas price",
			slog.String("price", r.config.DefaultPrice.String()),
			slog.String("reason", err.Error()),
		)
		r.config.Metrics.gasFallback()
		return GasParameters{
			Price:  new(big.Int).Set(r.config.DefaultPrice),
			Limit:  r.config.Limit,
			Source: GasPriceFromDefault,
		}
	}

	r.logger.Debug("using network gas price", slog.String("price", price.String()))
	return GasParameters{
		Price:  price,
		Limit:  r.config.Limit,
		Source: GasPriceFromNetwork,
	}
}

// networkPrice makes a single bounded query.
func (r *GasPriceResolver) networkPrice(ctx context.Context) (*big.Int, error) {
	if r.source == nil {
		return nil, fmt.Errorf("%w: no price source", ErrGasPriceUnavailable)
	}

	queryCtx, cancel := context.WithTimeout(ctx, r.config.QueryTimeout)
	defer cancel()

	price, err := r.source.SuggestGasPrice(queryCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGasPriceUnavailable, err)
	}
	if price == nil || price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: network returned %v", ErrGasPriceUnavailable, price)
	}
	return price, nil
}
