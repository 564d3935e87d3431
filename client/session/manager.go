// Package session owns the message list for the selected conversation
// partner and mediates every send and receive against it. One Manager
// serves one authenticated user for the lifetime of their session.
package session

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/venturesroom/venturechat/client/api"
)

// MaxUploadBytes caps attachment size.
const MaxUploadBytes = 5 << 20

// OptimisticIDPrefix tags locally synthesized message ids.
const OptimisticIDPrefix = "temp-"

var allowedImageExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
}

// Phase is the conversation's lifecycle state.
type Phase int

const (
	// PhaseIdle means no partner is selected.
	PhaseIdle Phase = iota
	// PhaseLoading means a history fetch is in flight.
	PhaseLoading
	// PhaseReady means history is installed; sends may be in flight.
	PhaseReady
	// PhaseError means the history fetch failed.
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// ChatMessage is one entry of the conversation view. Persisted messages
// carry the server id in decimal; optimistic entries carry a temp- id
// until reconciliation replaces them.
type ChatMessage struct {
	ID           string
	SenderName   string
	ReceiverName string
	Content      string
	ImageURL     string
	Timestamp    time.Time
	IsOptimistic bool
}

func fromAPI(msg *api.Message) ChatMessage {
	return ChatMessage{
		ID:           strconv.FormatInt(msg.ID, 10),
		SenderName:   msg.SenderName,
		ReceiverName: msg.ReceiverName,
		Content:      msg.Content,
		ImageURL:     msg.ImageURL,
		Timestamp:    msg.Timestamp,
	}
}

// API is the slice of the gateway client the manager needs.
type API interface {
	ConversationWith(ctx context.Context, partnerName string) ([]api.Message, error)
	Send(ctx context.Context, receiverName, content, imageURL string) (*api.Message, error)
	UploadImage(ctx context.Context, filename string, r io.Reader) (string, error)
}

// UnreadTracker is the aggregator surface the manager uses to acknowledge
// a conversation on open.
type UnreadTracker interface {
	Count(partnerName string) int
	MarkRead(ctx context.Context, partnerName string) error
}

// View is a render-ready snapshot of the conversation state.
type View struct {
	Partner   string
	Phase     Phase
	Messages  []ChatMessage
	FetchErr  error
	SendErr   error
	UploadErr error
	Uploading bool
}

// Manager is the conversation session manager. All exported methods are
// safe for concurrent use; blocking network work happens outside the
// state lock so the view stays responsive.
type Manager struct {
	api    API
	unread UnreadTracker
	log    *zerolog.Logger
	self   string

	state conversationState
}

// conversationState is everything guarded by its mutex. The generation
// counter increments on every partner selection so results landing for a
// superseded selection can be told apart and dropped.
type conversationState struct {
	sync.Mutex

	generation uint64
	partner    string
	phase      Phase
	messages   []ChatMessage
	fetchErr   error
	sendErr    error
	uploadErr  error
	uploading  bool
	onChange   func()
}

// New creates a manager for the user identified by selfName. unread may
// be nil when no aggregator is wired.
func New(apiClient API, unread UnreadTracker, selfName string, logger *zerolog.Logger) *Manager {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Manager{
		api:    apiClient,
		unread: unread,
		log:    logger,
		self:   selfName,
	}
}

// OnChange installs a callback invoked, without the state lock held,
// after every visible state mutation. Consumers re-read View().
func (m *Manager) OnChange(fn func()) {
	m.state.Lock()
	m.state.onChange = fn
	m.state.Unlock()
}

// SelectPartner switches the conversation to partnerName: the list is
// cleared, history is fetched, and the result installs only if no newer
// selection happened in the meantime. Late results for a stale selection
// are discarded.
func (m *Manager) SelectPartner(ctx context.Context, partnerName string) error {
	m.state.Lock()
	m.state.generation++
	gen := m.state.generation
	m.state.partner = partnerName
	m.state.phase = PhaseLoading
	m.state.messages = nil
	m.state.fetchErr = nil
	m.state.sendErr = nil
	m.state.Unlock()
	m.notify()

	history, err := m.api.ConversationWith(ctx, partnerName)

	m.state.Lock()
	if m.state.generation != gen {
		// A newer selection owns the view now.
		m.state.Unlock()
		m.log.Debug().Str("partner", partnerName).Msg("discarded stale history fetch")
		return nil
	}
	if err != nil {
		fetchErr := &FetchError{Partner: partnerName, Err: err}
		m.state.phase = PhaseError
		m.state.fetchErr = fetchErr
		m.state.Unlock()
		m.notify()
		return fetchErr
	}

	messages := make([]ChatMessage, 0, len(history))
	for i := range history {
		messages = append(messages, fromAPI(&history[i]))
	}
	sortByTimestamp(messages)
	m.state.messages = messages
	m.state.phase = PhaseReady
	m.state.Unlock()
	m.notify()

	m.acknowledgeUnread(ctx, partnerName)
	return nil
}

func (m *Manager) acknowledgeUnread(ctx context.Context, partnerName string) {
	if m.unread == nil || m.unread.Count(partnerName) == 0 {
		return
	}
	if err := m.unread.MarkRead(ctx, partnerName); err != nil {
		m.log.Warn().Err(err).Str("partner", partnerName).Msg("failed to acknowledge conversation")
	}
}

// Send runs the optimistic-commit protocol: validate, append a temporary
// entry immediately, persist, then reconcile the temporary entry with the
// server copy or roll it back. Multiple sends may be in flight; each is
// tracked by its own temporary id.
func (m *Manager) Send(ctx context.Context, content, imageURL string) error {
	content = strings.TrimSpace(content)
	if content == "" && imageURL == "" {
		return ErrEmptyMessage
	}

	m.state.Lock()
	if m.state.partner == "" {
		m.state.Unlock()
		return ErrNoPartner
	}
	gen := m.state.generation
	partner := m.state.partner
	tempID := OptimisticIDPrefix + uuid.NewString()
	m.state.messages = append(m.state.messages, ChatMessage{
		ID:           tempID,
		SenderName:   m.self,
		ReceiverName: partner,
		Content:      content,
		ImageURL:     imageURL,
		Timestamp:    time.Now(),
		IsOptimistic: true,
	})
	m.state.sendErr = nil
	m.state.Unlock()
	m.notify()

	sent, err := m.api.Send(ctx, partner, content, imageURL)

	m.state.Lock()
	if err != nil {
		if m.state.generation == gen {
			m.removeLocked(tempID)
			m.state.sendErr = &SendError{Partner: partner, Err: err}
		}
		m.state.Unlock()
		m.notify()
		return &SendError{Partner: partner, Err: err}
	}

	// Reconcile only while the same conversation is still on screen. The
	// server copy must also belong to it; anything else is dropped rather
	// than spliced into the wrong view.
	if m.state.generation == gen && m.involvesLocked(sent) {
		m.reconcileLocked(tempID, fromAPI(sent))
	} else {
		m.removeLocked(tempID)
	}
	m.state.Unlock()
	m.notify()
	return nil
}

// SendImage validates the attachment, uploads it, then sends a message
// carrying the stored image URL. Validation failures reject synchronously
// with no network call; upload failures block the send entirely. One
// upload may be in flight at a time.
func (m *Manager) SendImage(ctx context.Context, filename string, size int64, r io.Reader) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedImageExts[ext]; !ok {
		return ErrFileType
	}
	if size > MaxUploadBytes {
		return ErrFileTooLarge
	}

	m.state.Lock()
	if m.state.partner == "" {
		m.state.Unlock()
		return ErrNoPartner
	}
	if m.state.uploading {
		m.state.Unlock()
		return ErrUploadInFlight
	}
	m.state.uploading = true
	m.state.uploadErr = nil
	m.state.Unlock()
	m.notify()

	imageURL, err := m.api.UploadImage(ctx, filename, r)

	m.state.Lock()
	m.state.uploading = false
	if err != nil {
		m.state.uploadErr = &UploadError{Filename: filename, Err: err}
		m.state.Unlock()
		m.notify()
		return &UploadError{Filename: filename, Err: err}
	}
	m.state.Unlock()
	m.notify()

	return m.Send(ctx, "", imageURL)
}

// Receive merges a message pushed by the gateway. It reports whether the
// message belonged to the selected conversation; callers signal an unread
// re-sync instead when it does not.
func (m *Manager) Receive(msg *api.Message) bool {
	m.state.Lock()
	if m.state.partner == "" || m.state.phase != PhaseReady || !m.involvesLocked(msg) {
		m.state.Unlock()
		return false
	}
	incoming := fromAPI(msg)
	for _, existing := range m.state.messages {
		if existing.ID == incoming.ID {
			m.state.Unlock()
			return true
		}
	}
	m.state.messages = append(m.state.messages, incoming)
	sortByTimestamp(m.state.messages)
	m.state.Unlock()
	m.notify()
	return true
}

// View returns a snapshot of the current conversation state.
func (m *Manager) View() View {
	m.state.Lock()
	defer m.state.Unlock()
	messages := make([]ChatMessage, len(m.state.messages))
	copy(messages, m.state.messages)
	return View{
		Partner:   m.state.partner,
		Phase:     m.state.phase,
		Messages:  messages,
		FetchErr:  m.state.fetchErr,
		SendErr:   m.state.sendErr,
		UploadErr: m.state.uploadErr,
		Uploading: m.state.uploading,
	}
}

func (m *Manager) involvesLocked(msg *api.Message) bool {
	partner := m.state.partner
	return (msg.SenderName == m.self && msg.ReceiverName == partner) ||
		(msg.SenderName == partner && msg.ReceiverName == m.self)
}

func (m *Manager) reconcileLocked(tempID string, reconciled ChatMessage) {
	for i := range m.state.messages {
		if m.state.messages[i].ID == tempID {
			m.state.messages[i] = reconciled
			// Server clock may disagree with the client clock used for the
			// optimistic timestamp; restore order after the swap.
			sortByTimestamp(m.state.messages)
			return
		}
	}
}

func (m *Manager) removeLocked(tempID string) {
	for i := range m.state.messages {
		if m.state.messages[i].ID == tempID {
			m.state.messages = append(m.state.messages[:i], m.state.messages[i+1:]...)
			return
		}
	}
}

func (m *Manager) notify() {
	m.state.Lock()
	fn := m.state.onChange
	m.state.Unlock()
	if fn != nil {
		fn()
	}
}

func sortByTimestamp(messages []ChatMessage) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
}
