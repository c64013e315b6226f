package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/nexusbot/internal/booking"
	"github.com/yoockh/nexusbot/internal/cache"
	"github.com/yoockh/nexusbot/internal/completion"
	"github.com/yoockh/nexusbot/internal/events"
	"github.com/yoockh/nexusbot/internal/logger"
	"github.com/yoockh/nexusbot/internal/models"
	"github.com/yoockh/nexusbot/internal/records"
	"github.com/yoockh/nexusbot/internal/scheduling"
	"github.com/yoockh/nexusbot/internal/utils"
)

type scriptedProvider struct {
	mu      sync.Mutex
	replies []string
	prompts []string
	systems []string
}

func (p *scriptedProvider) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.systems = append(p.systems, systemPrompt)
	p.prompts = append(p.prompts, userPrompt)
	if len(p.replies) == 0 {
		return "ok", nil
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	return r, nil
}

func (p *scriptedProvider) Close() error { return nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type chatFixture struct {
	store    records.Store
	provider *scriptedProvider
	pub      *recordingPublisher
	sessions *sessionService
	chat     *chatService
}

func newChatFixture(store records.Store, locker cache.Locker, opts ChatOptions, replies ...string) *chatFixture {
	log := logger.Discard()
	p := &scriptedProvider{replies: replies}
	pub := &recordingPublisher{}

	sessions := NewSessionService(store, log).(*sessionService)
	sessions.now = fixedClock(friday)

	chat := NewChatService(
		store,
		sessions,
		completion.NewService(p, time.Second, log),
		scheduling.NewInjector(""),
		booking.NewExtractor("", log),
		locker,
		pub,
		opts,
		log,
	).(*chatService)
	chat.now = fixedClock(friday)

	return &chatFixture{store: store, provider: p, pub: pub, sessions: sessions, chat: chat}
}

func TestSendBooksConfirmedAppointment(t *testing.T) {
	store := records.NewMemoryStore()
	bot := profileOf(schedulingBot())
	reply := "Perfect, you're booked for Monday at 10:00.\n[BOOKING: {\"start\": \"2025-01-06T10:00:00\", \"end\": \"2025-01-06T10:30:00\"}]"
	f := newChatFixture(store, nil, ChatOptions{Strict: true}, "Monday at 10am works. Shall I confirm?", reply)
	ctx := context.Background()

	first, err := f.chat.Send(ctx, bot, SendRequest{Content: "Can I come Monday at 10am?", OriginURL: "https://clinic.example"})
	require.NoError(t, err)
	require.True(t, models.IsPersistedSessionID(first.SessionID))
	assert.Nil(t, first.Appointment)

	res, err := f.chat.Send(ctx, bot, SendRequest{SessionID: first.SessionID, Content: "Yes, confirm Monday at 10am"})
	require.NoError(t, err)
	require.NotNil(t, res.Appointment)

	assert.NotContains(t, res.Reply.Content, "[BOOKING")
	assert.True(t, strings.HasSuffix(res.Reply.Content, ConfirmationSuffix))
	assert.True(t, strings.HasPrefix(res.Reply.Content, "Perfect, you're booked for Monday at 10:00."))

	var appts []models.Appointment
	require.NoError(t, store.Select(ctx, models.CollectionAppointments, records.Where(records.Eq("session_id", first.SessionID)), &appts))
	require.Len(t, appts, 1)
	a := appts[0]
	assert.Equal(t, models.AppointmentConfirmed, a.Status)
	assert.Equal(t, "2025-01-06T10:00:00", a.StartTime)
	assert.Equal(t, "2025-01-06T10:30:00", a.EndTime)
	assert.NotNil(t, a.UserData)

	start, err := booking.ParseTime(a.StartTime, time.UTC)
	require.NoError(t, err)
	end, err := booking.ParseTime(a.EndTime, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, end.Sub(start))

	// scheduling context went to the model, transcript carries the whole thread
	require.Len(t, f.provider.systems, 2)
	assert.Contains(t, f.provider.systems[1], "monday: 09:00 to 17:00")
	assert.Contains(t, f.provider.systems[1], "Appointment duration: 30 minutes.")
	assert.Contains(t, f.provider.prompts[1], "USER: Can I come Monday at 10am?")
	assert.Contains(t, f.provider.prompts[1], "ASSISTANT: Monday at 10am works. Shall I confirm?")
	assert.True(t, strings.HasSuffix(f.provider.prompts[1], "USER: Yes, confirm Monday at 10am\n\nASSISTANT:"))

	var msgs []models.Message
	require.NoError(t, store.Select(ctx, models.CollectionMessages,
		records.Where(records.Eq("session_id", first.SessionID)).OrderBy(records.Asc("created_at")), &msgs))
	require.Len(t, msgs, 4)
	assert.Equal(t, res.Reply.Content, msgs[3].Content)

	var sess []models.Session
	require.NoError(t, store.Select(ctx, models.CollectionSessions, records.Where(records.Eq("id", first.SessionID)), &sess))
	require.Len(t, sess, 1)
	assert.Equal(t, "Yes, confirm Monday at 10am", sess[0].PreviewText)

	require.Len(t, f.pub.events, 2)
	assert.Equal(t, events.TypeTurn, f.pub.events[1].Type)
	require.NotNil(t, f.pub.events[1].Appointment)
}

func TestSendAttachesLeadDataToAppointment(t *testing.T) {
	store := records.NewMemoryStore()
	raw := schedulingBot()
	raw.LeadConfig = models.ConfigJSON(`{"enabled": true, "emailRequired": true}`)
	bot := profileOf(raw)
	f := newChatFixture(store, nil, ChatOptions{Strict: true},
		`Booked! [BOOKING: {"start": "2025-01-06T09:00:00", "end": "2025-01-06T09:30:00"}]`)
	ctx := context.Background()

	sid, err := f.sessions.SubmitLead(ctx, bot, LeadSubmission{UserData: map[string]string{"Email": "jo@example.com"}})
	require.NoError(t, err)

	res, err := f.chat.Send(ctx, bot, SendRequest{SessionID: sid, Content: "yes please"})
	require.NoError(t, err)
	require.NotNil(t, res.Appointment)
	assert.Equal(t, "jo@example.com", res.Appointment.UserData["Email"])
	assert.Equal(t, "Booked!"+ConfirmationSuffix, res.Reply.Content)
}

func TestSendRejectsBookingOutsideHours(t *testing.T) {
	store := records.NewMemoryStore()
	bot := profileOf(schedulingBot())
	f := newChatFixture(store, nil, ChatOptions{Strict: true},
		`Done. [BOOKING: {"start": "2025-01-07T10:00:00", "end": "2025-01-07T10:30:00"}]`)

	res, err := f.chat.Send(context.Background(), bot, SendRequest{Content: "Tuesday 10am, confirmed"})
	require.NoError(t, err)
	assert.Nil(t, res.Appointment)
	assert.Equal(t, "Done."+RejectionSuffix, res.Reply.Content)
	assert.Zero(t, store.Count(models.CollectionAppointments))
}

func TestSendTrustsModelWhenNotStrict(t *testing.T) {
	store := records.NewMemoryStore()
	bot := profileOf(schedulingBot())
	f := newChatFixture(store, nil, ChatOptions{Strict: false},
		`Done. [BOOKING: {"start": "2025-01-07T10:00:00", "end": "2025-01-07T10:30:00"}]`)

	res, err := f.chat.Send(context.Background(), bot, SendRequest{Content: "Tuesday 10am, confirmed"})
	require.NoError(t, err)
	require.NotNil(t, res.Appointment)
	assert.Equal(t, 1, store.Count(models.CollectionAppointments))
}

func TestSendMalformedDirectiveIsShownAsIs(t *testing.T) {
	store := records.NewMemoryStore()
	bot := profileOf(schedulingBot())
	raw := `Booked. [BOOKING: {"start": "2025-01-06T10:00:00", "end": "2025-01-06T10:30:00",}]`
	f := newChatFixture(store, nil, ChatOptions{Strict: true}, raw)

	res, err := f.chat.Send(context.Background(), bot, SendRequest{Content: "confirm"})
	require.NoError(t, err)
	assert.Equal(t, raw, res.Reply.Content)
	assert.Nil(t, res.Appointment)
	assert.Zero(t, store.Count(models.CollectionAppointments))
}

func TestSendDegradesToTempSession(t *testing.T) {
	store := failingInserts{records.NewMemoryStore()}
	bot := profileOf(schedulingBot())
	f := newChatFixture(store, nil, ChatOptions{Strict: true},
		`Booked. [BOOKING: {"start": "2025-01-06T10:00:00", "end": "2025-01-06T10:30:00"}]`)

	res, err := f.chat.Send(context.Background(), bot, SendRequest{
		Content: "confirm",
		History: []completion.Turn{{Role: models.RoleAssistant, Content: "Hi! I'm Clinic. How can I help you today?"}, {Role: models.RoleUser, Content: "Monday 10?"}, {Role: models.RoleAssistant, Content: "Sure, confirm?"}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.TempSessionID, res.SessionID)
	assert.Equal(t, models.TempSessionID, res.Reply.SessionID)
	assert.Nil(t, res.Appointment)
	assert.Equal(t, "Booked.", res.Reply.Content)
	assert.Empty(t, f.pub.events)

	// client-held transcript reaches the model
	assert.Contains(t, f.provider.prompts[0], "USER: Monday 10?\nASSISTANT: Sure, confirm?\nUSER: confirm")
}

func TestSendPrependsGreetingToFreshConversation(t *testing.T) {
	bot := profileOf(schedulingBot())
	f := newChatFixture(records.NewMemoryStore(), nil, ChatOptions{})

	_, err := f.chat.Send(context.Background(), bot, SendRequest{Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "CONVERSATION HISTORY:\nASSISTANT: "+bot.Greeting()+"\nUSER: hello\n\nASSISTANT:", f.provider.prompts[0])
}

func TestSendWithoutCompletionCredential(t *testing.T) {
	store := records.NewMemoryStore()
	log := logger.Discard()
	sessions := NewSessionService(store, log)
	chat := NewChatService(store, sessions, completion.NewService(nil, 0, log), scheduling.NewInjector(""),
		booking.NewExtractor("", log), nil, nil, ChatOptions{}, log)

	res, err := chat.Send(context.Background(), profileOf(models.Bot{ID: "b1", Name: "Ana"}), SendRequest{Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, completion.MissingCredentialText, res.Reply.Content)
}

func TestSendValidation(t *testing.T) {
	bot := profileOf(models.Bot{ID: "b1", Name: "Ana", AllowedOrigins: []string{"https://shop.example"}})
	f := newChatFixture(records.NewMemoryStore(), nil, ChatOptions{})
	ctx := context.Background()

	_, err := f.chat.Send(ctx, bot, SendRequest{Content: "   "})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = f.chat.Send(ctx, bot, SendRequest{Content: "hi", OriginURL: "https://evil.example"})
	assert.True(t, utils.IsCode(err, utils.CodeForbidden))

	off := newChatFixture(records.Disconnected{}, nil, ChatOptions{})
	_, err = off.chat.Send(ctx, profileOf(models.Bot{ID: "b1"}), SendRequest{Content: "hi"})
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
}

func TestSendWaitsForTurnLock(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	locker := cache.NewRedisLocker(rdb)

	store := records.NewMemoryStore()
	bot := profileOf(schedulingBot())
	f := newChatFixture(store, locker, ChatOptions{LockWait: 50 * time.Millisecond})
	ctx := context.Background()

	first, err := f.chat.Send(ctx, bot, SendRequest{Content: "hi"})
	require.NoError(t, err)

	// another tab holds the turn
	release, ok, err := locker.Acquire(ctx, cache.TurnLockKey(first.SessionID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.chat.Send(ctx, bot, SendRequest{SessionID: first.SessionID, Content: "again"})
	assert.True(t, utils.IsCode(err, utils.CodeRateLimited))

	release()
	_, err = f.chat.Send(ctx, bot, SendRequest{SessionID: first.SessionID, Content: "again"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.TurnLockKey(first.SessionID)))
}

func TestSendContinuesWhenLockBackendDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	mr.Close()

	bot := profileOf(schedulingBot())
	f := newChatFixture(records.NewMemoryStore(), cache.NewRedisLocker(rdb), ChatOptions{})
	ctx := context.Background()

	first, err := f.chat.Send(ctx, bot, SendRequest{Content: "hi"})
	require.NoError(t, err)
	_, err = f.chat.Send(ctx, bot, SendRequest{SessionID: first.SessionID, Content: "again"})
	require.NoError(t, err)
}

func TestSendReplacesNonUUIDSession(t *testing.T) {
	store := records.NewMemoryStore()
	bot := profileOf(seedBot(store, models.Bot{Name: "Ana"}))
	f := newChatFixture(store, nil, ChatOptions{}, "Hello!")

	res, err := f.chat.Send(context.Background(), bot, SendRequest{SessionID: "legacy-session", Content: "hi"})
	require.NoError(t, err)
	assert.NotEqual(t, "legacy-session", res.SessionID)
	assert.Equal(t, 1, store.Count(models.CollectionSessions))
	assert.Equal(t, 2, store.Count(models.CollectionMessages))
}

func TestSendTagsTurnWithClientID(t *testing.T) {
	store := records.NewMemoryStore()
	bot := profileOf(seedBot(store, models.Bot{Name: "Ana"}))
	f := newChatFixture(store, nil, ChatOptions{}, "Hello!")

	res, err := f.chat.Send(context.Background(), bot, SendRequest{Content: "hi", ClientID: "tab-1"})
	require.NoError(t, err)

	require.Len(t, f.pub.events, 1)
	ev := f.pub.events[0]
	assert.Equal(t, "tab-1", ev.ClientID)
	require.Len(t, ev.Messages, 2)
	assert.Equal(t, res.UserMessage.ID, ev.Messages[0].ID)
}

func TestSendRejectsTakenSlot(t *testing.T) {
	store := records.NewMemoryStore()
	bot := profileOf(schedulingBot())
	bot.Scheduling.BufferMinutes = 15
	directive := `Booked! [BOOKING: {"start": "2025-01-06T10:00:00", "end": "2025-01-06T10:30:00"}]`
	near := `Booked! [BOOKING: {"start": "2025-01-06T10:40:00", "end": "2025-01-06T11:10:00"}]`
	free := `Booked! [BOOKING: {"start": "2025-01-06T11:00:00", "end": "2025-01-06T11:30:00"}]`
	f := newChatFixture(store, nil, ChatOptions{Strict: true}, directive, directive, near, free)
	ctx := context.Background()

	first, err := f.chat.Send(ctx, bot, SendRequest{Content: "Monday 10am please"})
	require.NoError(t, err)
	require.NotNil(t, first.Appointment)

	// a visitor on another session asks for the same slot
	second, err := f.chat.Send(ctx, bot, SendRequest{Content: "Monday 10am for me too"})
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Nil(t, second.Appointment)
	assert.Equal(t, "Booked!"+RejectionSuffix, second.Reply.Content)

	third, err := f.chat.Send(ctx, bot, SendRequest{Content: "Monday 10:40?"})
	require.NoError(t, err)
	assert.Nil(t, third.Appointment)

	fourth, err := f.chat.Send(ctx, bot, SendRequest{Content: "Monday 11am?"})
	require.NoError(t, err)
	require.NotNil(t, fourth.Appointment)
	assert.Equal(t, 2, store.Count(models.CollectionAppointments))
}
