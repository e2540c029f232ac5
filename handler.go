package backstop

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// logCapacity bounds the handler's in-memory error log. Oldest entries are
// evicted first.
const logCapacity = 100

type (
	// Handler normalizes arbitrary errors into the typed taxonomy, logs
	// them, forwards them to an external tracker, and formats them for
	// end-user display. Construct one explicitly and inject it where
	// needed; this package deliberately ships no global default instance.
	Handler struct {
		logger  *slog.Logger
		tracker func(*AppError)
		clock   Clock

		mu      sync.Mutex
		entries []LogEntry

		logEnabled   bool
		trackEnabled bool
	}

	// HandlerOption configures a [Handler].
	HandlerOption func(*Handler)

	// LogEntry is an immutable snapshot of an AppError taken at log time.
	LogEntry struct {
		Context     map[string]any
		ID          string
		Message     string
		UserMessage string
		Code        Code
		Timestamp   time.Time
		Severity    Severity
		Retryable   bool
	}

	// Report is the UI-facing digest of a handled error.
	Report struct {
		Code        Code
		Message     string
		UserMessage string
		Severity    Severity
		Retryable   bool
	}

	// Stats aggregates the handler's bounded log — not full history — by
	// severity and by code.
	Stats struct {
		BySeverity map[Severity]int
		ByCode     map[Code]int
		Total      int
	}
)

// WithLogger sets the structured logger errors are reported to.
// The default is slog.Default().
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = logger }
}

// WithTracker forwards every handled error to an external tracking hook.
// The tracker is fire-and-forget: it is not awaited, and a panic inside it
// never reaches the caller.
func WithTracker(tracker func(*AppError)) HandlerOption {
	return func(h *Handler) {
		h.tracker = tracker
		h.trackEnabled = tracker != nil
	}
}

// WithoutLogging disables structured logging and log-entry capture.
func WithoutLogging() HandlerOption {
	return func(h *Handler) { h.logEnabled = false }
}

// WithHandlerClock overrides the clock used for log-entry timestamps.
func WithHandlerClock(clock Clock) HandlerOption {
	return func(h *Handler) { h.clock = clock }
}

// NewHandler creates a Handler with logging enabled and no tracker.
func NewHandler(opts ...HandlerOption) *Handler {
	h := &Handler{
		logEnabled: true,
		clock:      RealClock{},
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.logger == nil {
		h.logger = slog.Default()
	}

	return h
}

// Handle normalizes err into the typed taxonomy, merges extra diagnostic
// context into it, logs it, forwards it to the tracker, and returns the
// UI-facing report. Handling an already-typed error twice merges contexts
// rather than discarding the original code or severity.
func (h *Handler) Handle(err error, meta map[string]any) Report {
	ae := Normalize(err)
	if ae == nil {
		return Report{}
	}

	if len(meta) > 0 {
		if ae.Context == nil {
			ae.Context = make(map[string]any, len(meta))
		}

		for k, v := range meta {
			ae.Context[k] = v
		}
	}

	if h.logEnabled {
		h.log(ae)
	}

	if h.trackEnabled {
		guard(func() { h.tracker(ae) })
	}

	return Report{
		Code:        ae.Code,
		Message:     ae.Message,
		UserMessage: userMessageFor(ae),
		Severity:    ae.Severity,
		Retryable:   ae.Retryable,
	}
}

// ShouldRetry is the handler-level retry predicate: false once attempt has
// reached maxRetries, otherwise the taxonomy's [IsRetryable] answer.
func (h *Handler) ShouldRetry(err error, attempt, maxRetries int) bool {
	if attempt >= maxRetries {
		return false
	}

	return IsRetryable(err)
}

// Entries returns a snapshot of the bounded error log, oldest first.
func (h *Handler) Entries() []LogEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]LogEntry, len(h.entries))
	copy(out, h.entries)

	return out
}

// Stats aggregates counts by severity and code over the bounded log only.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Stats{
		BySeverity: make(map[Severity]int),
		ByCode:     make(map[Code]int),
		Total:      len(h.entries),
	}

	for _, e := range h.entries {
		s.BySeverity[e.Severity]++
		s.ByCode[e.Code]++
	}

	return s
}

// log emits a structured record and appends an immutable snapshot to the
// bounded ring.
func (h *Handler) log(ae *AppError) {
	level := slog.LevelWarn

	switch ae.Severity {
	case SeverityLow:
		level = slog.LevelInfo
	case SeverityHigh, SeverityCritical:
		level = slog.LevelError
	case SeverityMedium:
	}

	attrs := []any{
		slog.String("code", string(ae.Code)),
		slog.String("kind", ae.Kind.String()),
		slog.String("severity", ae.Severity.String()),
		slog.Bool("retryable", ae.Retryable),
	}
	if ae.Cause != nil {
		attrs = append(attrs, slog.String("cause", ae.Cause.Error()))
	}

	for k, v := range ae.Context {
		attrs = append(attrs, slog.Any(k, v))
	}

	h.logger.Log(context.Background(), level, ae.Message, attrs...)

	entry := LogEntry{
		ID:          uuid.NewString(),
		Timestamp:   h.clock.Now(),
		Code:        ae.Code,
		Severity:    ae.Severity,
		Message:     ae.Message,
		UserMessage: userMessageFor(ae),
		Retryable:   ae.Retryable,
	}

	if len(ae.Context) > 0 {
		entry.Context = make(map[string]any, len(ae.Context))
		for k, v := range ae.Context {
			entry.Context[k] = v
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, entry)
	if len(h.entries) > logCapacity {
		h.entries = h.entries[len(h.entries)-logCapacity:]
	}
}

// ---------------------------------------------------------------------------
// User-facing formatting
// ---------------------------------------------------------------------------.

// FormatForUI translates any error into a stable, user-safe message. This is
// the only sanctioned translation point from internal codes to user-visible
// strings: raw exception text never leaks through it. The per-kind switches
// must stay exhaustive as codes are added.
func FormatForUI(err error) string {
	if err == nil {
		return ""
	}

	ae, ok := AsAppError(err)
	if !ok {
		return "Something went wrong. Please try again."
	}

	return userMessageFor(ae)
}

// userMessageFor returns the error's pre-rendered user message or derives
// one from its kind and code.
func userMessageFor(ae *AppError) string {
	if ae.UserMessage != "" {
		return ae.UserMessage
	}

	switch ae.Kind {
	case KindAPI:
		return apiUserMessage(ae.Code)
	case KindValidation:
		if ae.Field != "" {
			return "Please check the " + ae.Field + " field and try again."
		}

		return "Please check your input and try again."
	case KindStorage:
		return storageUserMessage(ae.Code)
	case KindStream:
		return streamUserMessage(ae.Code)
	case KindWorkflow:
		if ae.Step != "" {
			return "The " + ae.Step + " step failed. You can retry the workflow."
		}

		return "A workflow step failed. You can retry the workflow."
	case KindGeneric:
		return genericUserMessage(ae.Code)
	default:
		return "Something went wrong. Please try again."
	}
}

func apiUserMessage(code Code) string {
	switch code {
	case CodeNetwork:
		return "Unable to reach the server. Check your connection and try again."
	case CodeTimeout:
		return "The request took too long. Please try again."
	case CodeRateLimited:
		return "Too many requests. Please wait a moment and try again."
	case CodeAuthentication:
		return "Your session has expired. Please sign in again."
	case CodeAuthorization:
		return "You don't have permission to do that."
	case CodeQuotaExceeded:
		return "You've reached your usage limit."
	case CodeServerError:
		return "The service is having trouble right now. Please try again later."
	case CodeNotFound:
		return "The requested resource was not found."
	default:
		return "The request failed. Please try again."
	}
}

func storageUserMessage(code Code) string {
	switch code {
	case CodeStorageQuota:
		return "Storage is full. Free up some space and try again."
	case CodeStorageRead:
		return "Couldn't load your saved data."
	case CodeStorageWrite:
		return "Couldn't save your changes."
	case CodeStorageCorrupt:
		return "Your saved data appears to be damaged."
	default:
		return "A storage problem occurred."
	}
}

func streamUserMessage(code Code) string {
	switch code {
	case CodeStreamConnection:
		return "Lost connection to the stream. Reconnecting may help."
	case CodeStreamTimeout:
		return "The stream stopped responding. Please try again."
	case CodeStreamInterrupted:
		return "The stream was interrupted before completing."
	default:
		return "A streaming problem occurred."
	}
}

func genericUserMessage(code Code) string {
	switch code {
	case CodeTimeout:
		return "The operation took too long. Please try again."
	case CodeUnknown:
		return "Something went wrong. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
