package sim

import (
	"log/slog"

	"github.com/tathienbao/backsim/internal/account"
	"github.com/tathienbao/backsim/internal/metrics"
	"github.com/tathienbao/backsim/internal/pricing"
	"github.com/tathienbao/backsim/internal/types"
)

type Option func(*Broker)

func WithAccountModel(m account.Model) Option {
	return func(b *Broker) {
		b.model = m
	}
}

func WithPricingEngine(pe pricing.Engine) Option {
	return func(b *Broker) {
		b.pricing = pe
	}
}

func WithFeeModel(f account.FeeModel) Option {
	return func(b *Broker) {
		b.fees = f
	}
}

// WithConverter sets the converter used for amounts outside the base
// currency. Without one, holding other currencies fails the account model.
func WithConverter(c types.Converter) Option {
	return func(b *Broker) {
		b.converter = c
	}
}

func WithBaseCurrency(c types.Currency) Option {
	return func(b *Broker) {
		b.base = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) {
		b.logger = l
	}
}

func WithRecorder(r *metrics.Recorder) Option {
	return func(b *Broker) {
		b.recorder = r
	}
}
