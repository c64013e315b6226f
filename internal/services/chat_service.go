package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/nexusbot/internal/booking"
	"github.com/yoockh/nexusbot/internal/cache"
	"github.com/yoockh/nexusbot/internal/completion"
	"github.com/yoockh/nexusbot/internal/events"
	"github.com/yoockh/nexusbot/internal/metrics"
	"github.com/yoockh/nexusbot/internal/models"
	"github.com/yoockh/nexusbot/internal/records"
	"github.com/yoockh/nexusbot/internal/scheduling"
	"github.com/yoockh/nexusbot/internal/utils"
)

// Suffixes appended to the visible reply after a booking directive was handled.
const (
	ConfirmationSuffix = "\n\n✅ Appointment confirmed in our system!"
	RejectionSuffix    = "\n\n⚠️ That time is not available, so nothing was booked. Please pick another slot."
)

const maxMessageRunes = 4000

type SendRequest struct {
	SessionID  string // parsed id; empty or a placeholder when none exists yet
	Content    string
	OriginURL  string
	ClientInfo *models.ClientInfo
	ClientID   string // opaque per-tab id, echoed on the published turn
	// History is the client-held transcript, used when the session is not persisted.
	History []completion.Turn
}

type SendResult struct {
	SessionID   string              `json:"session_id"`
	UserMessage models.Message      `json:"user_message"`
	Reply       models.Message      `json:"reply"`
	Appointment *models.Appointment `json:"appointment,omitempty"`
}

type ChatService interface {
	Send(ctx context.Context, bot *models.BotProfile, req SendRequest) (*SendResult, error)
}

type ChatOptions struct {
	Strict   bool          // validate bookings against the calendar before saving
	LockTTL  time.Duration // turn lease
	LockWait time.Duration // how long a second tab waits for the lease
}

type chatService struct {
	store     records.Store
	sessions  SessionService
	completer *completion.Service
	injector  scheduling.Injector
	extractor *booking.Extractor
	locker    cache.Locker
	events    events.Publisher
	opts      ChatOptions
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewChatService wires the per-message pipeline. locker and pub may be nil.
func NewChatService(
	store records.Store,
	sessions SessionService,
	completer *completion.Service,
	injector scheduling.Injector,
	extractor *booking.Extractor,
	locker cache.Locker,
	pub events.Publisher,
	opts ChatOptions,
	log logrus.FieldLogger,
) ChatService {
	if pub == nil {
		pub = events.Nop{}
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 90 * time.Second
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 30 * time.Second
	}
	return &chatService{
		store:     store,
		sessions:  sessions,
		completer: completer,
		injector:  injector,
		extractor: extractor,
		locker:    locker,
		events:    pub,
		opts:      opts,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *chatService) Send(ctx context.Context, bot *models.BotProfile, req SendRequest) (*SendResult, error) {
	const op = "ChatService.Send"

	if bot == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "bot is required", nil)
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "message is empty", nil)
	}
	if len([]rune(content)) > maxMessageRunes {
		return nil, utils.E(utils.CodeInvalidArgument, op, "message is too long", nil)
	}
	if err := checkOrigin(bot, req.OriginURL); err != nil {
		return nil, utils.E(utils.CodeForbidden, op, "this site may not embed the widget", err)
	}
	if !s.store.Connected() {
		return nil, utils.E(utils.CodeUnavailable, op, NotConnectedMessage, records.ErrNotConnected)
	}

	log := s.log.WithField("bot_id", bot.ID)

	sessionID := req.SessionID
	if storedSessionID(sessionID) {
		release, err := s.acquireTurn(ctx, sessionID)
		if err != nil {
			metrics.Turn("busy")
			return nil, utils.E(utils.CodeRateLimited, op, "a previous message is still being answered", err)
		}
		defer release()
	}

	sessionID, _ = s.sessions.EnsureSession(ctx, bot, sessionID, content, req.OriginURL, req.ClientInfo)
	persisted := models.IsPersistedSessionID(sessionID)
	log = log.WithField("session_id", sessionID)

	userMsg := models.Message{
		ID:        uuid.NewString(),
		ChatbotID: bot.ID,
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   content,
		CreatedAt: s.now(),
	}
	userSaved := persisted && s.insert(ctx, log, models.CollectionMessages, &userMsg)

	transcript := s.transcript(ctx, log, bot, sessionID, userSaved, req.History, userMsg)

	now := s.now()
	reply := s.completer.Complete(ctx, completion.Request{
		RoleDefinition:    bot.RoleDefinition,
		KnowledgeBase:     bot.KnowledgeBase,
		SchedulingContext: s.injector.Build(bot.Scheduling, now),
		History:           transcript,
	})

	text := reply.Text
	var appt *models.Appointment
	if reply.OK() {
		text, appt = s.reconcileBooking(ctx, log, bot, sessionID, text, now)
	}

	aiMsg := models.Message{
		ID:        uuid.NewString(),
		ChatbotID: bot.ID,
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   text,
		CreatedAt: s.now(),
	}
	if persisted {
		s.insert(ctx, log, models.CollectionMessages, &aiMsg)
		if err := s.store.Update(ctx, models.CollectionSessions,
			map[string]any{"preview_text": models.Preview(content)}, records.Eq("id", sessionID)); err != nil {
			log.WithError(err).Warn("preview update failed")
		}
		ev := events.Event{Type: events.TypeTurn, SessionID: sessionID, Messages: []models.Message{userMsg, aiMsg}, Appointment: appt, ClientID: req.ClientID}
		if err := s.events.Publish(ctx, ev); err != nil {
			log.WithError(err).Warn("turn publish failed")
		}
	}

	metrics.Turn(reply.Result)
	return &SendResult{SessionID: sessionID, UserMessage: userMsg, Reply: aiMsg, Appointment: appt}, nil
}

// acquireTurn serializes turns on one session. Lock backend errors degrade to no lock.
func (s *chatService) acquireTurn(ctx context.Context, sessionID string) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	key := cache.TurnLockKey(sessionID)
	deadline := time.NewTimer(s.opts.LockWait)
	defer deadline.Stop()
	tick := time.NewTicker(150 * time.Millisecond)
	defer tick.Stop()

	for {
		release, ok, err := s.locker.Acquire(ctx, key, s.opts.LockTTL)
		if err != nil {
			s.log.WithError(err).WithField("session_id", sessionID).Warn("turn lock unavailable, continuing unlocked")
			return noop, nil
		}
		if ok {
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, errors.New("turn lock wait exceeded")
		case <-tick.C:
		}
	}
}

func (s *chatService) insert(ctx context.Context, log logrus.FieldLogger, collection string, doc any) bool {
	if err := s.store.Insert(ctx, collection, doc); err != nil {
		log.WithError(err).WithField("collection", collection).Warn("insert failed")
		return false
	}
	return true
}

// transcript prefers the stored history; the client copy covers unsaved sessions.
// A conversation that starts with the visitor gets the local greeting in front.
func (s *chatService) transcript(ctx context.Context, log logrus.FieldLogger, bot *models.BotProfile, sessionID string, userSaved bool, client []completion.Turn, userMsg models.Message) []completion.Turn {
	var turns []completion.Turn
	fromStore := false
	if userSaved {
		history, err := s.sessions.History(ctx, sessionID)
		if err != nil {
			log.WithError(err).Warn("history fetch failed, using client transcript")
		} else if n := len(history); n > 0 && history[n-1].ID == userMsg.ID {
			for _, m := range history {
				turns = append(turns, completion.Turn{Role: m.Role, Content: m.Content})
			}
			fromStore = true
		}
	}
	if !fromStore {
		for _, t := range client {
			if strings.TrimSpace(t.Content) == "" {
				continue
			}
			turns = append(turns, t)
		}
		turns = append(turns, completion.Turn{Role: userMsg.Role, Content: userMsg.Content})
	}

	if turns[0].Role != models.RoleAssistant {
		turns = append([]completion.Turn{{Role: models.RoleAssistant, Content: bot.Greeting()}}, turns...)
	}
	return turns
}

func (s *chatService) reconcileBooking(ctx context.Context, log logrus.FieldLogger, bot *models.BotProfile, sessionID, text string, now time.Time) (string, *models.Appointment) {
	res := s.extractor.Extract(text)
	if res.Booking == nil {
		return res.Text, nil
	}
	b := *res.Booking
	log = log.WithFields(logrus.Fields{"start": b.Start, "end": b.End})

	if s.opts.Strict {
		if err := booking.Validate(b, bot.Scheduling, now); err != nil {
			log.WithError(err).Info("booking rejected")
			metrics.Booking("rejected")
			return res.Text + RejectionSuffix, nil
		}
		if err := s.checkSlot(ctx, bot, b); err != nil {
			log.WithError(err).Info("booking rejected")
			metrics.Booking("conflict")
			return res.Text + RejectionSuffix, nil
		}
	}
	if !models.IsPersistedSessionID(sessionID) {
		log.Warn("booking not saved: no persisted session")
		metrics.Booking("unsaved")
		return res.Text, nil
	}

	appt := models.Appointment{
		ID:        uuid.NewString(),
		ChatbotID: bot.ID,
		SessionID: sessionID,
		UserData:  s.sessions.LeadData(ctx, sessionID),
		StartTime: strings.TrimSpace(b.Start),
		EndTime:   strings.TrimSpace(b.End),
		Status:    models.AppointmentConfirmed,
		CreatedAt: s.now(),
	}
	if !s.insert(ctx, log, models.CollectionAppointments, &appt) {
		metrics.Booking("persist_failed")
		return res.Text, nil
	}
	metrics.Booking("confirmed")
	return res.Text + ConfirmationSuffix, &appt
}

// checkSlot compares b with the bot's stored appointments. A failed lookup
// lets the booking through.
func (s *chatService) checkSlot(ctx context.Context, bot *models.BotProfile, b booking.Booking) error {
	var taken []models.Appointment
	if err := s.store.Select(ctx, models.CollectionAppointments, records.Where(records.Eq("chatbot_id", bot.ID)), &taken); err != nil {
		s.log.WithError(err).WithField("bot_id", bot.ID).Warn("appointment lookup failed")
		return nil
	}
	return booking.CheckConflicts(b, taken, bot.Scheduling)
}
