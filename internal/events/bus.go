package events

import "sync"

// Kind enumerates the lifecycle notifications the engine publishes.
type Kind int

const (
	UpdateStart Kind = iota
	BinaryUpdateStart
	BinaryUpdateFinish
	PatchUpdateStart
	PatchUpdateFinish
	ExtractStart
	ExtractUpdate
	ExtractSucceeded
	ExtractFailed
	ValidateStart
	ValidateUpdate
	ValidateSucceeded
	ValidateFailed
	DownloadStart
	DownloadUpdate
	DownloadSucceeded
	DownloadFailed
	UpdateFinish
)

func (k Kind) String() string {
	switch k {
	case UpdateStart:
		return "update_start"
	case BinaryUpdateStart:
		return "binary_update_start"
	case BinaryUpdateFinish:
		return "binary_update_finish"
	case PatchUpdateStart:
		return "patch_update_start"
	case PatchUpdateFinish:
		return "patch_update_finish"
	case ExtractStart:
		return "extract_start"
	case ExtractUpdate:
		return "extract_update"
	case ExtractSucceeded:
		return "extract_succeeded"
	case ExtractFailed:
		return "extract_failed"
	case ValidateStart:
		return "validate_start"
	case ValidateUpdate:
		return "validate_update"
	case ValidateSucceeded:
		return "validate_succeeded"
	case ValidateFailed:
		return "validate_failed"
	case DownloadStart:
		return "download_start"
	case DownloadUpdate:
		return "download_update"
	case DownloadSucceeded:
		return "download_succeeded"
	case DownloadFailed:
		return "download_failed"
	case UpdateFinish:
		return "update_finish"
	default:
		return "unknown"
	}
}

// Bus is a typed publish/subscribe mechanism. One bus is constructed per
// run and injected explicitly, so tests can swap in a capturing instance.
// Publishers never inspect subscribers; Notify fans out synchronously in
// subscription order.
type Bus struct {
	mu   sync.RWMutex
	subs map[Kind][]func(payload any)
	all  []func(kind Kind, payload any)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Kind][]func(any))}
}

// Subscribe registers a callback for a single event kind.
func (b *Bus) Subscribe(kind Kind, fn func(payload any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[kind] = append(b.subs[kind], fn)
}

// SubscribeAll registers a callback for every event kind.
func (b *Bus) SubscribeAll(fn func(kind Kind, payload any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, fn)
}

// Notify publishes an event to all matching subscribers. Callbacks run on
// the caller's goroutine; long-running observers should hand off themselves.
func (b *Bus) Notify(kind Kind, payload any) {
	b.mu.RLock()
	subs := b.subs[kind]
	all := b.all
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(payload)
	}
	for _, fn := range all {
		fn(kind, payload)
	}
}
