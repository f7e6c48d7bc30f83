// Package fetcher issues lock API requests on behalf of UI surfaces.
//
// A fetch shows a loading indicator in its target surface, performs the
// request, and hands the decoded payload to a Handler. Failed attempts are
// classified and retried with exponential backoff; when the budget runs out
// the surface shows the error with a Retry control. An expired session is
// never retried: the user is sent to the login page instead.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	oteltrace "go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/lockwatch/lockdash/clock"
	lockhttp "github.com/lockwatch/lockdash/http"
	"github.com/lockwatch/lockdash/logger"
	"github.com/lockwatch/lockdash/render"
	"github.com/lockwatch/lockdash/surface"
	"github.com/lockwatch/lockdash/trace"
)

// Defaults applied when Options leave a field zero.
const (
	DefaultRetries    = 3
	DefaultDelay      = time.Second
	DefaultFactor     = 1.5
	DefaultLoginPath  = "/login"
	DefaultLoginDelay = 3 * time.Second
)

// Handler consumes the payload of a successful response. target is the live
// surface the fetch was aimed at, or nil when there is none. A returned error
// or a panic is reported as a processing failure.
type Handler func(data json.RawMessage, target surface.Surface) error

// Options configures a Fetcher. Client is required.
type Options struct {
	Client    lockhttp.Client
	Registry  surface.Registry
	Navigator surface.Navigator
	Clock     clock.Clock
	Logger    logger.Logger

	MeterProvider  metric.MeterProvider
	TracerProvider oteltrace.TracerProvider

	// Retries and Delay form the budget used by FetchDefault and the
	// terminal Retry control. Leaving both zero selects 3 retries after 1s.
	Retries int
	Delay   time.Duration
	// Factor scales the delay after every failed attempt.
	Factor float64
	// MaxDelay caps the backoff delay. Zero leaves it uncapped.
	MaxDelay time.Duration

	LoginPath  string
	LoginDelay time.Duration
}

// Fetcher runs fetch chains. It is safe for concurrent use.
type Fetcher struct {
	client    lockhttp.Client
	registry  surface.Registry
	navigator surface.Navigator
	clock     clock.Clock
	logger    logger.Logger
	tracer    oteltrace.Tracer
	metrics   *instruments

	retries    int
	delay      time.Duration
	factor     float64
	maxDelay   time.Duration
	loginPath  string
	loginDelay time.Duration
}

// New creates a Fetcher from opts.
func New(opts Options) (*Fetcher, error) {
	if opts.Client == nil {
		return nil, errors.New("fetcher: client is required")
	}
	if opts.Retries < 0 {
		return nil, fmt.Errorf("fetcher: retries must not be negative, got %d", opts.Retries)
	}
	if opts.Factor != 0 && opts.Factor < 1 {
		return nil, fmt.Errorf("fetcher: backoff factor must be at least 1, got %v", opts.Factor)
	}

	f := &Fetcher{
		client:     opts.Client,
		registry:   opts.Registry,
		navigator:  opts.Navigator,
		clock:      opts.Clock,
		logger:     opts.Logger,
		retries:    opts.Retries,
		delay:      opts.Delay,
		factor:     opts.Factor,
		maxDelay:   opts.MaxDelay,
		loginPath:  opts.LoginPath,
		loginDelay: opts.LoginDelay,
	}
	if f.clock == nil {
		f.clock = clock.New()
	}
	if f.logger == nil {
		f.logger = logger.Nop()
	}
	if f.retries == 0 && opts.Delay == 0 {
		f.retries = DefaultRetries
	}
	if f.delay <= 0 {
		f.delay = DefaultDelay
	}
	if f.factor == 0 {
		f.factor = DefaultFactor
	}
	if f.loginPath == "" {
		f.loginPath = DefaultLoginPath
	}
	if f.loginDelay <= 0 {
		f.loginDelay = DefaultLoginDelay
	}

	mp := opts.MeterProvider
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	m, err := newInstruments(mp)
	if err != nil {
		return nil, err
	}
	f.metrics = m

	tp := opts.TracerProvider
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}
	f.tracer = tp.Tracer(instrumentationName)

	return f, nil
}

// FetchDefault is Fetch with the configured default budget.
func (f *Fetcher) FetchDefault(ctx context.Context, spec RequestSpec, target surface.ID, onSuccess Handler) *Task {
	return f.Fetch(ctx, spec, target, onSuccess, f.retries, f.delay)
}

// Fetch starts a fetch chain and returns immediately. retries is the number
// of automatic retries after the first attempt; delay is the wait before the
// first retry. Canceling ctx stops the chain.
func (f *Fetcher) Fetch(ctx context.Context, spec RequestSpec, target surface.ID, onSuccess Handler, retries int, delay time.Duration) *Task {
	if retries < 0 {
		retries = 0
	}
	if delay <= 0 {
		delay = f.delay
	}

	chainID := trace.NewID()
	chainCtx, cancel := context.WithCancel(trace.WithChainID(ctx, chainID))
	c := &chain{
		f:         f,
		parent:    ctx,
		ctx:       chainCtx,
		task:      newTask(cancel),
		spec:      spec,
		target:    target,
		onSuccess: onSuccess,
		retries:   retries,
		delay:     delay,
		log: f.logger.WithFields(map[string]any{
			"chain_id": chainID,
			"endpoint": spec.Endpoint,
			"surface":  string(target),
		}),
	}

	if err := spec.Validate(); err != nil {
		c.log.Error().Err(err).Msg("rejected fetch")
		c.write(func(s surface.Surface) { s.Replace(render.Error(MsgUnknown, false)) })
		c.finish(Failed, &Error{Classification: ClientProtocolError, Message: MsgUnknown, Err: err})
		return c.task
	}

	go c.attempt(retries, delay)
	return c.task
}

// next returns the delay that follows d.
func (f *Fetcher) next(d time.Duration) time.Duration {
	n := float64(d) * f.factor
	if n > math.MaxInt64 {
		n = math.MaxInt64
	}
	next := time.Duration(n)
	if f.maxDelay > 0 && next > f.maxDelay {
		next = f.maxDelay
	}
	return next
}

// chain is the state of one Fetch call across its attempts.
type chain struct {
	f         *Fetcher
	parent    context.Context
	ctx       context.Context
	task      *Task
	spec      RequestSpec
	target    surface.ID
	onSuccess Handler
	retries   int
	delay     time.Duration
	log       logger.Logger
}

func (c *chain) attempt(retriesLeft int, delay time.Duration) {
	if c.ctx.Err() != nil {
		c.canceled()
		return
	}

	c.write(func(s surface.Surface) { s.Replace(render.Loading()) })

	n := c.task.addAttempt()
	ctx, span := c.f.tracer.Start(c.ctx, "fetch "+c.spec.String(),
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String("http.request.method", c.spec.method()),
			attribute.String("endpoint", c.spec.Endpoint),
			attribute.String("surface", string(c.target)),
			attribute.Int("attempt", n),
			attribute.Int("retries_left", retriesLeft),
		))
	defer span.End()

	c.log.Debug().Int("attempt", n).Int("retries_left", retriesLeft).Msg("fetch attempt")
	c.f.metrics.recordAttempt(ctx, c.spec)

	start := c.f.clock.Now()
	data, status, err := c.do(ctx)
	c.f.metrics.recordDuration(ctx, c.spec, float64(c.f.clock.Now().Sub(start))/float64(time.Millisecond))
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}

	if c.ctx.Err() != nil {
		span.SetStatus(codes.Error, "canceled")
		c.canceled()
		return
	}

	if err != nil {
		span.RecordError(err)
		c.failed(ctx, span, err, retriesLeft, delay, n)
		return
	}

	if perr := c.deliver(data); perr != nil {
		span.RecordError(perr)
		span.SetStatus(codes.Error, ClientProtocolError.String())
		c.processingFailed(ctx, perr)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.log.Debug().Int("attempt", n).Msg("fetch succeeded")
	c.finish(Succeeded, nil)
}

// do performs one request bounded by the request timeout and returns the JSON
// payload of a successful response.
func (c *chain) do(ctx context.Context) (json.RawMessage, int, error) {
	req, err := c.spec.request()
	if err != nil {
		return nil, 0, err
	}

	ctx, cancel := context.WithTimeout(trace.WithRequestID(ctx, trace.NewID()), c.spec.timeout())
	defer cancel()

	resp, err := c.f.client.Do(ctx, c.spec.method(), req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if err != nil {
		return nil, status, err
	}

	if len(resp.Body) == 0 {
		return nil, status, nil
	}
	if !json.Valid(resp.Body) {
		return nil, status, fmt.Errorf("%w (status %d)", errInvalidJSON, status)
	}
	return json.RawMessage(resp.Body), status, nil
}

// deliver runs the handler, converting panics into errors.
func (c *chain) deliver(data json.RawMessage) (err error) {
	if c.onSuccess == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return c.onSuccess(data, c.lookup())
}

func (c *chain) failed(ctx context.Context, span oteltrace.Span, err error, retriesLeft int, delay time.Duration, n int) {
	class, status := Classify(err)
	span.SetStatus(codes.Error, class.String())
	c.f.metrics.recordFailure(ctx, c.spec, class)

	if class == Unauthorized {
		c.unauthorized(err, status)
		return
	}

	if retriesLeft > 0 {
		c.f.metrics.recordRetry(ctx, c.spec)
		c.log.Warn().
			Err(err).
			Int("attempt", n).
			Int("retries_left", retriesLeft).
			Dur("delay", delay).
			Str("classification", class.String()).
			Msg("fetch failed, retrying")

		next := c.f.next(delay)
		c.schedule(delay, func() { c.attempt(retriesLeft-1, next) })
		return
	}

	msg := Message(class, status, responseBody(err))
	c.log.Error().
		Err(err).
		Int("attempt", n).
		Int("status", status).
		Str("classification", class.String()).
		Msg("fetch failed")

	c.write(func(s surface.Surface) {
		s.ReplaceWithControls(render.Error(msg, true), c.retryDefault())
	})
	c.finish(Failed, &Error{Classification: class, Status: status, Message: msg, Err: err})
}

// unauthorized shows the session message and sends the user to the login
// page after a fixed delay. No automatic retries are attempted; the Retry
// control starts a fresh default chain.
func (c *chain) unauthorized(err error, status int) {
	msg := Message(Unauthorized, status, responseBody(err))
	c.log.Warn().Err(err).Str("location", c.f.loginPath).Dur("delay", c.f.loginDelay).Msg("session expired")

	c.write(func(s surface.Surface) {
		s.ReplaceWithControls(render.Error(msg, true), c.retryDefault())
	})
	if c.f.navigator != nil {
		location := c.f.loginPath
		c.f.clock.AfterFunc(c.f.loginDelay, func() { c.f.navigator.Navigate(location) })
	}
	c.finish(Failed, &Error{Classification: Unauthorized, Status: status, Message: msg, Err: err})
}

// processingFailed offers a retry with the budget the chain started with.
func (c *chain) processingFailed(ctx context.Context, err error) {
	c.f.metrics.recordFailure(ctx, c.spec, ClientProtocolError)
	c.log.Error().Err(err).Msg("error processing API response")

	c.write(func(s surface.Surface) {
		s.ReplaceWithControls(render.Error(MsgProcessing, true), map[string]func(){
			render.RetryControl: func() {
				c.f.Fetch(c.parent, c.spec, c.target, c.onSuccess, c.retries, c.delay)
			},
		})
	})
	c.finish(Failed, &Error{Classification: ClientProtocolError, Message: MsgProcessing, Err: err})
}

// retryDefault is the Retry control for terminal failures.
func (c *chain) retryDefault() map[string]func() {
	return map[string]func(){
		render.RetryControl: func() {
			c.f.FetchDefault(c.parent, c.spec, c.target, c.onSuccess)
		},
	}
}

// schedule runs fn after d unless the chain is canceled first.
func (c *chain) schedule(d time.Duration, fn func()) {
	timer := c.f.clock.AfterFunc(d, fn)
	context.AfterFunc(c.ctx, func() {
		if timer.Stop() {
			c.canceled()
		}
	})
}

func (c *chain) lookup() surface.Surface {
	if c.target == "" || c.f.registry == nil {
		return nil
	}
	s, ok := c.f.registry.Lookup(c.target)
	if !ok {
		return nil
	}
	return s
}

// write applies fn to the target surface if the chain is live and the
// surface still exists.
func (c *chain) write(fn func(surface.Surface)) {
	if c.ctx.Err() != nil {
		return
	}
	s := c.lookup()
	if s == nil {
		if c.target != "" {
			c.log.Debug().Msg("target surface not registered, skipping update")
		}
		return
	}
	fn(s)
}

func (c *chain) canceled() {
	err := ErrCanceled
	if cause := context.Cause(c.ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		err = fmt.Errorf("%w: %w", ErrCanceled, cause)
	}
	if c.task.complete(Canceled, err) {
		c.log.Debug().Msg("fetch canceled")
	}
	c.task.Cancel()
}

func (c *chain) finish(state State, err error) {
	c.task.complete(state, err)
	c.task.Cancel()
}
