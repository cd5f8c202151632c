// Package errors provides centralized, categorized error handling for both
// wkmp cores (playback and ingest). It is a drop-in superset of the standard
// library errors package with a fluent builder for attaching component,
// category and structured context to an error at the point it is created.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrorCategory represents the type of error for better categorization.
type ErrorCategory string

// CategorizedError is an interface for errors that can specify their own category.
type CategorizedError interface {
	error
	ErrorCategory() ErrorCategory
}

const (
	// Shared / ambient categories.
	CategoryGeneric       ErrorCategory = "generic"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryNetwork       ErrorCategory = "network"
	CategoryDatabase      ErrorCategory = "database"
	CategoryConfiguration ErrorCategory = "configuration"
	CategorySystem        ErrorCategory = "system-resource"
	CategoryValidation    ErrorCategory = "validation"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryState         ErrorCategory = "state"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryCancellation  ErrorCategory = "cancellation"
	CategoryRetry         ErrorCategory = "retry"
	CategoryBroadcast     ErrorCategory = "broadcast"
	CategoryIntegration   ErrorCategory = "integration"

	// Playback-core categories.
	CategoryDecode      ErrorCategory = "decode"
	CategoryResample    ErrorCategory = "resample"
	CategoryFade        ErrorCategory = "fade"
	CategoryChain       ErrorCategory = "chain"
	CategoryBuffer      ErrorCategory = "ring-buffer"
	CategoryMixer       ErrorCategory = "mixer"
	CategoryMarker      ErrorCategory = "marker"
	CategoryAudioDevice ErrorCategory = "audio-device"

	// Ingest-core categories.
	CategoryScan        ErrorCategory = "scan"
	CategoryExtraction  ErrorCategory = "extraction"
	CategoryFusion      ErrorCategory = "fusion"
	CategoryAmplitude   ErrorCategory = "amplitude"
	CategoryIngestPhase ErrorCategory = "ingest-phase"
)

// Priority constants for error prioritization.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with additional context and metadata.
type EnhancedError struct {
	Err       error
	component string
	Category  ErrorCategory
	Priority  string
	Context   map[string]any
	Timestamp time.Time
	reported  bool
	mu        sync.RWMutex
	detected  bool
}

func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return Is(ee.Err, target)
}

// GetComponent returns the component name, detecting it lazily if needed.
func (ee *EnhancedError) GetComponent() string {
	ee.mu.RLock()
	if ee.detected || ee.component != "" {
		component := ee.component
		ee.mu.RUnlock()
		return component
	}
	ee.mu.RUnlock()

	ee.mu.Lock()
	defer ee.mu.Unlock()
	if ee.component == "" && !ee.detected {
		ee.component = detectComponent()
		ee.detected = true
		if ee.component == "" {
			ee.component = ComponentUnknown
		}
	}
	return ee.component
}

func (ee *EnhancedError) GetCategory() string { return string(ee.Category) }

func (ee *EnhancedError) GetPriority() string { return ee.Priority }

func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	if ee.Context == nil {
		return nil
	}
	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

func (ee *EnhancedError) GetTimestamp() time.Time { return ee.Timestamp }

func (ee *EnhancedError) GetError() error { return ee.Err }

func (ee *EnhancedError) GetMessage() string {
	if ee.Err != nil {
		return ee.Err.Error()
	}
	return ""
}

func (ee *EnhancedError) MarkReported() {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	ee.reported = true
}

func (ee *EnhancedError) IsReported() bool {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	return ee.reported
}

// ErrorBuilder provides a fluent interface for creating enhanced errors.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New creates a new error with enhanced context.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new formatted error with enhanced context.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		eb.priority = priority
	default:
		if priority != "" {
			eb.priority = PriorityMedium
		}
	}
	return eb
}

// Context adds context data to the error.
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// FileContext adds file-specific context.
func (eb *ErrorBuilder) FileContext(filePath string, fileSize int64) *ErrorBuilder {
	if filePath != "" {
		eb.Context("file_extension", getFileExtension(filePath))
	}
	if fileSize > 0 {
		eb.Context("file_size_category", categorizeFileSize(fileSize))
	}
	return eb
}

// NetworkContext adds network-specific context (URLs are anonymized).
func (eb *ErrorBuilder) NetworkContext(url string, timeout time.Duration) *ErrorBuilder {
	if url != "" {
		eb.Context("url_category", categorizeURL(url))
	}
	if timeout > 0 {
		eb.Context("timeout_seconds", timeout.Seconds())
	}
	return eb
}

// ChainContext adds decoder-chain identity context.
func (eb *ErrorBuilder) ChainContext(chainIndex int, queueEntryID string) *ErrorBuilder {
	eb.Context("chain_index", chainIndex)
	eb.Context("queue_entry_id", queueEntryID)
	return eb
}

// Timing adds performance timing context.
func (eb *ErrorBuilder) Timing(operation string, duration time.Duration) *ErrorBuilder {
	eb.Context("operation", operation)
	eb.Context("duration_ms", duration.Milliseconds())
	return eb
}

// Build creates the EnhancedError and triggers optional hook reporting.
func (eb *ErrorBuilder) Build() *EnhancedError {
	if !hasActiveReporting.Load() {
		ee := &EnhancedError{
			Err:       eb.err,
			component: eb.component,
			Category:  eb.category,
			Priority:  eb.priority,
			Context:   eb.context,
			Timestamp: time.Now(),
			detected:  eb.component != "",
		}
		if ee.component == "" {
			ee.component = ComponentUnknown
			ee.detected = true
		}
		if ee.Category == "" {
			ee.Category = CategoryGeneric
		}
		return ee
	}

	if eb.component == "" {
		eb.component = detectComponent()
	}
	if eb.category == "" {
		eb.category = detectCategory(eb.err, eb.component)
	}

	ee := &EnhancedError{
		Err:       eb.err,
		component: eb.component,
		Category:  eb.category,
		Priority:  eb.priority,
		Context:   eb.context,
		Timestamp: time.Now(),
		detected:  true,
	}
	reportToHooks(ee)
	return ee
}

// Component registry for dynamic component detection.
var (
	componentRegistry = make(map[string]string)
	registryMutex     sync.RWMutex
)

// RegisterComponent registers a package path pattern with a component name.
func RegisterComponent(packagePattern, componentName string) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	componentRegistry[packagePattern] = componentName
}

func init() {
	RegisterComponent("playback/ringbuffer", "playback.ringbuffer")
	RegisterComponent("playback/decoder", "playback.decoder")
	RegisterComponent("playback/resampler", "playback.resampler")
	RegisterComponent("playback/fader", "playback.fader")
	RegisterComponent("playback/chain", "playback.chain")
	RegisterComponent("playback/worker", "playback.worker")
	RegisterComponent("playback/buffermanager", "playback.buffermanager")
	RegisterComponent("playback/mixer", "playback.mixer")
	RegisterComponent("playback/engine", "playback.engine")
	RegisterComponent("playback/validation", "playback.validation")
	RegisterComponent("playback/audiodevice", "playback.audiodevice")
	RegisterComponent("ingest/scanner", "ingest.scanner")
	RegisterComponent("ingest/loader", "ingest.loader")
	RegisterComponent("ingest/extractors", "ingest.extractors")
	RegisterComponent("ingest/fusion", "ingest.fusion")
	RegisterComponent("ingest/validators", "ingest.validators")
	RegisterComponent("ingest/amplitude", "ingest.amplitude")
	RegisterComponent("ingest/boundary", "ingest.boundary")
	RegisterComponent("ingest/orchestrator", "ingest.orchestrator")
	RegisterComponent("ingest/session", "ingest.session")
	RegisterComponent("musicbrainz", "musicbrainz")
	RegisterComponent("acoustid", "acoustid")
	RegisterComponent("acousticbrainz", "acousticbrainz")
	RegisterComponent("store", "store")
	RegisterComponent("conf", "configuration")
	RegisterComponent("events", "events")
}

func quickComponentLookup(depth int) string {
	pc, _, _, ok := runtime.Caller(depth)
	if !ok {
		return ""
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return ""
	}
	funcName := fn.Name()
	if strings.Contains(funcName, "github.com/wkmp/core/internal/errors") {
		return ""
	}
	return lookupComponent(funcName)
}

func detectComponent() string {
	for _, depth := range []int{4, 5, 6, 7} {
		if component := quickComponentLookup(depth); component != "" && component != ComponentUnknown {
			return component
		}
	}
	return detectComponentFull()
}

func detectComponentFull() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(2, pcs)
	if n == len(pcs) {
		pcs = make([]uintptr, 32)
		n = runtime.Callers(2, pcs)
	}
	for i := range n {
		fn := runtime.FuncForPC(pcs[i])
		if fn == nil {
			continue
		}
		funcName := fn.Name()
		if strings.Contains(funcName, "github.com/wkmp/core/internal/errors") {
			continue
		}
		if component := lookupComponent(funcName); component != ComponentUnknown {
			return component
		}
	}
	return ComponentUnknown
}

func lookupComponent(funcName string) string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	for pattern, component := range componentRegistry {
		if strings.Contains(funcName, pattern) {
			return component
		}
	}
	parts := strings.Split(funcName, "/")
	if len(parts) > 0 {
		lastPart := parts[len(parts)-1]
		if dotIndex := strings.Index(lastPart, "."); dotIndex > 0 {
			return lastPart[:dotIndex]
		}
	}
	return ComponentUnknown
}

// detectCategory automatically detects error category based on error message and component.
func detectCategory(err error, component string) ErrorCategory {
	var catErr CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr.ErrorCategory()
	}
	var enhErr *EnhancedError
	if stderrors.As(err, &enhErr) && enhErr.Category != "" {
		return enhErr.Category
	}

	errorMsg := strings.ToLower(err.Error())
	if strings.Contains(errorMsg, "file") || strings.Contains(errorMsg, "open") {
		return CategoryFileIO
	}
	if strings.Contains(errorMsg, "connection") || strings.Contains(errorMsg, "timeout") {
		return CategoryNetwork
	}
	if strings.Contains(errorMsg, "validation") || strings.Contains(errorMsg, "invalid") {
		return CategoryValidation
	}

	switch component {
	case "playback.decoder":
		return CategoryDecode
	case "playback.mixer":
		return CategoryMixer
	case "playback.chain":
		return CategoryChain
	case "store":
		return CategoryDatabase
	case "ingest.fusion":
		return CategoryFusion
	case "ingest.amplitude":
		return CategoryAmplitude
	}
	return CategoryGeneric
}

func getFileExtension(path string) string {
	if lastDot := strings.LastIndex(path, "."); lastDot > 0 && lastDot < len(path)-1 {
		return strings.ToLower(path[lastDot+1:])
	}
	return "none"
}

func categorizeFileSize(size int64) string {
	switch {
	case size < 1024:
		return "tiny"
	case size < 1024*1024:
		return "small"
	case size < 10*1024*1024:
		return "medium"
	case size < 100*1024*1024:
		return "large"
	default:
		return "very-large"
	}
}

func categorizeURL(url string) string {
	url = strings.ToLower(url)
	switch {
	case strings.HasPrefix(url, "http://"):
		return "http-endpoint"
	case strings.HasPrefix(url, "https://"):
		return "https-endpoint"
	default:
		return "other-protocol"
	}
}

// Convenience constructors for common error patterns.

func Wrap(err error) *ErrorBuilder { return New(err) }

func FileError(err error, filePath string, fileSize int64) *EnhancedError {
	return New(err).Category(CategoryFileIO).FileContext(filePath, fileSize).Build()
}

func NetworkError(err error, url string, timeout time.Duration) *EnhancedError {
	return New(err).Category(CategoryNetwork).NetworkContext(url, timeout).Build()
}

func ValidationError(message string) *EnhancedError {
	return New(NewStd(message)).Category(CategoryValidation).Build()
}

// Standard library passthrough functions, so this package is a drop-in
// replacement for the standard errors package.

func NewStd(text string) error { return stderrors.New(text) }

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func Unwrap(err error) error { return stderrors.Unwrap(err) }

func Join(errs ...error) error { return stderrors.Join(errs...) }

func IsCategory(err error, category ErrorCategory) bool {
	var enhancedErr *EnhancedError
	return As(err, &enhancedErr) && enhancedErr.Category == category
}

func IsNotFound(err error) bool { return IsCategory(err, CategoryNotFound) }

// Global hook plumbing. There is no external telemetry backend wired into
// this repository (see DESIGN.md); AddErrorHook exists so internal/metrics
// can bump a Prometheus counter keyed by category without this package
// importing the metrics package.

// ErrorHook is a function invoked whenever an EnhancedError is built while
// reporting is active.
type ErrorHook func(ee *EnhancedError)

var (
	errorHooks         []ErrorHook
	errorHooksMutex    sync.RWMutex
	hasActiveReporting atomic.Bool
)

// AddErrorHook adds a hook function called whenever an error is reported.
func AddErrorHook(hook ErrorHook) {
	errorHooksMutex.Lock()
	errorHooks = append(errorHooks, hook)
	errorHooksMutex.Unlock()
	hasActiveReporting.Store(true)
}

// ClearErrorHooks removes all error hooks (test-only convenience).
func ClearErrorHooks() {
	errorHooksMutex.Lock()
	errorHooks = nil
	errorHooksMutex.Unlock()
	hasActiveReporting.Store(false)
}

func reportToHooks(ee *EnhancedError) {
	errorHooksMutex.RLock()
	hooks := make([]ErrorHook, len(errorHooks))
	copy(hooks, errorHooks)
	errorHooksMutex.RUnlock()

	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					fmt.Printf("error hook panicked: %v\n", r)
				}
			}()
			hook(ee)
		}()
	}
	ee.MarkReported()
}
