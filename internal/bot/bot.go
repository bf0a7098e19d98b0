// Package bot implements the club's Telegram front end: the booking and
// membership flows for members, and the approval, schedule and broadcast
// tools for admins.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cueclub/internal/db"
	"cueclub/internal/events"
	"cueclub/internal/lifecycle"
	"cueclub/internal/model"
	"cueclub/internal/payment"
	"cueclub/internal/push"
	"cueclub/internal/slots"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

// Pusher delivers app push notifications alongside Telegram messages.
type Pusher interface {
	Send(ctx context.Context, messages []push.Message) error
}

// Bot wires the Telegram update loop to the lifecycle manager.
type Bot struct {
	tg        telegramClient
	db        *db.DB
	lifecycle *lifecycle.Service
	upi       payment.UPI
	pusher    Pusher // nil disables the push leg
	adminsMu  sync.RWMutex
	admins    map[int64]struct{}
	state     *stateStore
	logger    *zerolog.Logger

	// onBroadcast bridges a confirmed admin broadcast into the fan-out
	// service. Set via SetBroadcastHandler to avoid an import cycle.
	onBroadcast func(adminID int64, body string)

	// onExport triggers an on-demand report export. Set via
	// SetExportHandler.
	onExport func() error
}

// New creates a bot over the real Telegram API.
func New(token string, database *db.DB, svc *lifecycle.Service, bus *events.Bus,
	upi payment.UPI, pusher Pusher, admins []int64, logger *zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return newBot(&realTelegramClient{api: api}, database, svc, bus, upi, pusher, admins, logger)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(tg telegramClient, database *db.DB, svc *lifecycle.Service,
	bus *events.Bus, upi payment.UPI, pusher Pusher, admins []int64, logger *zerolog.Logger) (*Bot, error) {
	return newBot(tg, database, svc, bus, upi, pusher, admins, logger)
}

func newBot(tg telegramClient, database *db.DB, svc *lifecycle.Service, bus *events.Bus,
	upi payment.UPI, pusher Pusher, admins []int64, logger *zerolog.Logger) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	adminSet := make(map[int64]struct{}, len(admins))
	for _, id := range admins {
		adminSet[id] = struct{}{}
	}

	b := &Bot{
		tg:        tg,
		db:        database,
		lifecycle: svc,
		upi:       upi,
		pusher:    pusher,
		admins:    adminSet,
		state:     newStateStore(),
		logger:    logger,
	}

	// The lifecycle manager publishes decisions; the bot turns them into
	// user notifications.
	if bus != nil {
		bus.Subscribe(events.TypeBookingDecided, b.onBookingDecided)
		bus.Subscribe(events.TypeMembershipDecided, b.onMembershipDecided)
	}
	return b, nil
}

var (
	mainMenu = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("🎱 Book a Table"),
			tgbotapi.NewKeyboardButton("📌 My Bookings"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("💳 Membership"),
			tgbotapi.NewKeyboardButton("ℹ️ Help"),
		),
	)

	adminMenu = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("📥 Pending"),
			tgbotapi.NewKeyboardButton("📅 Schedule"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("📣 Broadcast"),
			tgbotapi.NewKeyboardButton("📊 Export"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("🎱 Book a Table"),
		),
	)
)

func (b *Bot) sendMainMenu(chatID, userID int64) {
	msg := tgbotapi.NewMessage(chatID, "What would you like to do?")
	if b.isAdmin(userID) {
		msg.ReplyMarkup = adminMenu
	} else {
		msg.ReplyMarkup = mainMenu
	}
	_, _ = b.tg.Send(msg)
}

// Start polls updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("bot authorized")

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			b.handleUpdate(l.WithContext(ctx), &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("handling callback")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil {
		l.Debug().
			Int64("user_id", update.Message.From.ID).
			Msg("handling message")
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.From == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)

	switch {
	case strings.HasPrefix(text, "/start"):
		b.state.reset(msg.From.ID)
		_, _ = b.db.GetOrCreateUserByTelegramID(ctx, msg.From.ID, msg.From.UserName, msg.From.FirstName, msg.From.LastName)
		b.sendMainMenu(msg.Chat.ID, msg.From.ID)
		return
	case text == "🎱 Book a Table" || strings.HasPrefix(text, "/book"):
		b.startBookingFlow(ctx, msg)
		return
	case text == "📌 My Bookings" || strings.HasPrefix(text, "/my_bookings"):
		b.handleMyBookings(ctx, msg)
		return
	case text == "💳 Membership" || strings.HasPrefix(text, "/membership"):
		b.handleMembership(ctx, msg)
		return
	case text == "ℹ️ Help" || strings.HasPrefix(text, "/help"):
		b.reply(msg.Chat.ID, "Commands: /book, /my_bookings, /membership, /cancel")
		return
	case strings.HasPrefix(text, "/link_app"):
		b.handleLinkApp(ctx, msg)
		return
	case strings.HasPrefix(text, "/cancel"):
		b.state.reset(msg.From.ID)
		b.reply(msg.Chat.ID, "Cancelled.")
		b.sendMainMenu(msg.Chat.ID, msg.From.ID)
		return
	case text == "📥 Pending" && b.isAdmin(msg.From.ID):
		b.handlePendingFeed(ctx, msg.Chat.ID)
		return
	case text == "📅 Schedule" && b.isAdmin(msg.From.ID):
		b.handleTodaySchedule(ctx, msg.Chat.ID)
		return
	case text == "📣 Broadcast" && b.isAdmin(msg.From.ID):
		st := b.state.get(msg.From.ID)
		st.Step = stepBroadcastText
		b.reply(msg.Chat.ID, "Send the announcement text:")
		return
	case text == "📊 Export" && b.isAdmin(msg.From.ID):
		b.handleExport(msg.Chat.ID)
		return
	case strings.HasPrefix(text, "/find") && b.isAdmin(msg.From.ID):
		b.handleFindBookings(ctx, msg.Chat.ID, strings.TrimSpace(strings.TrimPrefix(text, "/find")))
		return
	case strings.HasPrefix(text, "/revoke") && b.isAdmin(msg.From.ID):
		b.handleRevokeMembership(ctx, msg.Chat.ID, strings.TrimSpace(strings.TrimPrefix(text, "/revoke")))
		return
	case strings.HasPrefix(text, "/users") && b.isAdmin(msg.From.ID):
		b.handleListUsers(ctx, msg.Chat.ID)
		return
	case strings.HasPrefix(text, "/deluser") && b.isAdmin(msg.From.ID):
		b.handleDeleteUser(ctx, msg.Chat.ID, strings.TrimSpace(strings.TrimPrefix(text, "/deluser")))
		return
	}

	b.handleFlowText(ctx, msg, text)
}

// handleFlowText consumes free-text answers for whichever flow step the
// user is on.
func (b *Bot) handleFlowText(ctx context.Context, msg *tgbotapi.Message, text string) {
	st := b.state.get(msg.From.ID)

	switch st.Step {
	case stepName:
		st.Booking.Name = text
		st.Step = stepPhone
		b.reply(msg.Chat.ID, "Your phone number:")
	case stepPhone:
		phone, ok := normalizePhone(text)
		if !ok {
			b.reply(msg.Chat.ID, "That doesn't look like a phone number. Example: 99912 34567")
			return
		}
		st.Booking.Phone = phone
		st.Step = stepPay
		out := tgbotapi.NewMessage(msg.Chat.ID, "How will you pay?")
		out.ReplyMarkup = payKeyboard("pay:")
		_, _ = b.tg.Send(out)
	case stepUTR:
		if err := payment.ValidateUTR(text); err != nil {
			b.reply(msg.Chat.ID, "That UTR doesn't look right. Paste the reference from your UPI app.")
			return
		}
		st.Booking.UTR = payment.NormalizeUTR(text)
		st.Step = stepConfirm
		b.sendBookingConfirm(msg.Chat.ID, st)

	case stepMemberName:
		st.Membership.FullName = text
		st.Step = stepMemberPhone
		b.reply(msg.Chat.ID, "Your phone number:")
	case stepMemberPhone:
		phone, ok := normalizePhone(text)
		if !ok {
			b.reply(msg.Chat.ID, "That doesn't look like a phone number. Example: 99912 34567")
			return
		}
		st.Membership.Phone = phone
		st.Step = stepMemberEmail
		b.reply(msg.Chat.ID, "Your email:")
	case stepMemberEmail:
		st.Membership.Email = text
		st.Step = stepMemberIDType
		out := tgbotapi.NewMessage(msg.Chat.ID, "Government ID type:")
		out.ReplyMarkup = idTypeKeyboard()
		_, _ = b.tg.Send(out)
	case stepMemberIDNo:
		st.Membership.GovtIDNo = text
		st.Step = stepMemberPay
		out := tgbotapi.NewMessage(msg.Chat.ID,
			fmt.Sprintf("Membership fee is ₹%d for %d days. How will you pay?", lifecycle.MembershipFee, model.MembershipDays))
		out.ReplyMarkup = payKeyboard("mpay:")
		_, _ = b.tg.Send(out)
	case stepMemberUTR:
		if err := payment.ValidateUTR(text); err != nil {
			b.reply(msg.Chat.ID, "That UTR doesn't look right. Paste the reference from your UPI app.")
			return
		}
		st.Membership.UTR = payment.NormalizeUTR(text)
		st.Step = stepMemberConfirm
		b.sendMembershipConfirm(msg.Chat.ID, st)

	case stepBroadcastText:
		if !b.isAdmin(msg.From.ID) {
			b.state.reset(msg.From.ID)
			return
		}
		st.Broadcast = text
		st.Step = stepBroadcastConfirm
		out := tgbotapi.NewMessage(msg.Chat.ID,
			fmt.Sprintf("Send this to all members?\n\n%s", text))
		out.ReplyMarkup = confirmKeyboard("bconfirm")
		_, _ = b.tg.Send(out)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.Message == nil {
		return
	}
	data := cq.Data
	_, _ = b.tg.Request(tgbotapi.NewCallback(cq.ID, ""))
	if data == "noop" {
		return
	}

	userID := cq.From.ID
	chatID := cq.Message.Chat.ID
	st := b.state.get(userID)

	switch {
	case strings.HasPrefix(data, "game:"):
		b.handleGameCallback(chatID, st, strings.TrimPrefix(data, "game:"))
	case strings.HasPrefix(data, "units:"):
		st.Booking.Units = slots.ParseUnits(strings.TrimPrefix(data, "units:"))
		st.Step = stepDate
		b.sendCalendar(chatID)
	case strings.HasPrefix(data, "date:"):
		st.Booking.Date = strings.TrimPrefix(data, "date:")
		st.Step = stepSlot
		b.sendSlots(ctx, chatID, st)
	case strings.HasPrefix(data, "slot:"):
		b.handleSlotCallback(chatID, st, strings.TrimPrefix(data, "slot:"))
	case strings.HasPrefix(data, "pay:"):
		b.handlePayCallback(chatID, st, strings.TrimPrefix(data, "pay:"))
	case strings.HasPrefix(data, "idt:"):
		st.Membership.GovtIDType = strings.TrimPrefix(data, "idt:")
		st.Step = stepMemberIDNo
		b.reply(chatID, "ID number:")
	case strings.HasPrefix(data, "mpay:"):
		b.handleMemberPayCallback(chatID, st, strings.TrimPrefix(data, "mpay:"))
	case strings.HasPrefix(data, "back:"):
		b.handleBack(ctx, chatID, st, strings.TrimPrefix(data, "back:"))
	case data == "confirm":
		b.finalizeBooking(ctx, cq, st)
	case data == "mconfirm":
		b.finalizeMembership(ctx, cq, st)
	case data == "bconfirm":
		b.state.reset(userID)
		b.reply(chatID, "Broadcast queued.")
		if b.onBroadcast != nil {
			go b.onBroadcast(userID, st.Broadcast)
		}
	case data == "cancel":
		b.state.reset(userID)
		b.reply(chatID, "Cancelled. /book to start again.")
	case data == "mcancel":
		b.handleCancelMembership(ctx, chatID, cq.From)
	case strings.HasPrefix(data, "mgr:"):
		b.handleAdminDecision(ctx, chatID, userID, data)
	}
}

func (b *Bot) handleGameCallback(chatID int64, st *userState, game string) {
	if !model.GameType(game).Valid() {
		b.reply(chatID, "Unknown game.")
		return
	}
	st.Booking.Game = game
	if model.GameType(game) == model.GameSnooker {
		st.Step = stepUnits
		out := tgbotapi.NewMessage(chatID, "How many games? (30 min each, ₹80 per game)")
		out.ReplyMarkup = unitsKeyboard()
		_, _ = b.tg.Send(out)
		return
	}
	// Pool is a fixed one-hour block.
	st.Booking.Units = 1
	st.Step = stepDate
	b.sendCalendar(chatID)
}

func (b *Bot) handleSlotCallback(chatID int64, st *userState, startStr string) {
	if st.Booking.Date == "" || st.Booking.Game == "" {
		b.reply(chatID, "Let's start over: /book")
		return
	}
	start, err := time.Parse("15:04", startStr)
	if err != nil {
		b.reply(chatID, "Bad slot.")
		return
	}
	game := model.GameType(st.Booking.Game)
	end := start.Add(slots.GameDuration(game, st.Booking.Units))
	st.Booking.TimeLabel = start.Format("15:04") + "-" + end.Format("15:04")
	st.Step = stepName
	b.reply(chatID, "Your name:")
}

func (b *Bot) handlePayCallback(chatID int64, st *userState, method string) {
	st.Booking.Method = method
	if method == model.PayUPI {
		game := model.GameType(st.Booking.Game)
		amount := slots.GameAmount(game, st.Booking.Units)
		st.Step = stepUTR
		b.reply(chatID, fmt.Sprintf(
			"Pay ₹%d here:\n%s\n\nThen paste the UTR (transaction reference) from your UPI app:",
			amount, b.upi.Link(amount, "Table booking")))
		return
	}
	st.Step = stepConfirm
	b.sendBookingConfirm(chatID, st)
}

func (b *Bot) handleMemberPayCallback(chatID int64, st *userState, method string) {
	st.Membership.Method = method
	if method == model.PayUPI {
		st.Step = stepMemberUTR
		b.reply(chatID, fmt.Sprintf(
			"Pay ₹%d here:\n%s\n\nThen paste the UTR from your UPI app:",
			lifecycle.MembershipFee, b.upi.Link(lifecycle.MembershipFee, "Membership")))
		return
	}
	st.Step = stepMemberConfirm
	b.sendMembershipConfirm(chatID, st)
}

func (b *Bot) handleBack(ctx context.Context, chatID int64, st *userState, step string) {
	switch step {
	case "game":
		st.Step = stepGame
		out := tgbotapi.NewMessage(chatID, "Pick a game:")
		out.ReplyMarkup = gameKeyboard()
		_, _ = b.tg.Send(out)
	case "units":
		if model.GameType(st.Booking.Game) == model.GameSnooker {
			st.Step = stepUnits
			out := tgbotapi.NewMessage(chatID, "How many games?")
			out.ReplyMarkup = unitsKeyboard()
			_, _ = b.tg.Send(out)
			return
		}
		st.Step = stepGame
		out := tgbotapi.NewMessage(chatID, "Pick a game:")
		out.ReplyMarkup = gameKeyboard()
		_, _ = b.tg.Send(out)
	case "date":
		st.Step = stepDate
		b.sendCalendar(chatID)
	default:
		st.Step = stepSlot
		b.sendSlots(ctx, chatID, st)
	}
}

func (b *Bot) startBookingFlow(ctx context.Context, msg *tgbotapi.Message) {
	u, err := b.db.GetOrCreateUserByTelegramID(ctx, msg.From.ID, msg.From.UserName, msg.From.FirstName, msg.From.LastName)
	if err != nil {
		b.reply(msg.Chat.ID, "Something went wrong, try again.")
		return
	}

	// One open request at a time: while a booking is pending, the flow is
	// replaced by a read-only status card.
	pending, err := b.lifecycle.PendingBooking(ctx, u.ID)
	if err == nil && pending != nil {
		b.reply(msg.Chat.ID, fmt.Sprintf(
			"You already have a request waiting for approval:\n\n%s %s %s · ₹%d\n\nWe'll notify you once it's reviewed.",
			pending.Game.Label(), pending.Date(), pending.TimeLabel(), pending.Amount))
		return
	}

	b.state.reset(msg.From.ID)
	st := b.state.get(msg.From.ID)
	st.Step = stepGame
	out := tgbotapi.NewMessage(msg.Chat.ID, "Pick a game:")
	out.ReplyMarkup = gameKeyboard()
	_, _ = b.tg.Send(out)
}

func (b *Bot) sendCalendar(chatID int64) {
	now := time.Now()
	out := tgbotapi.NewMessage(chatID, "Pick a date:")
	out.ReplyMarkup = calendarKeyboard(now.Year(), now.Month(), now)
	_, _ = b.tg.Send(out)
}

// sendSlots renders the day menu for the drafted (date, game, units). The
// menu is a snapshot; the submit path re-checks availability.
func (b *Bot) sendSlots(ctx context.Context, chatID int64, st *userState) {
	if st.Booking.Date == "" || st.Booking.Game == "" {
		b.reply(chatID, "Let's start over: /book")
		return
	}
	date, err := time.ParseInLocation("2006-01-02", st.Booking.Date, time.Local)
	if err != nil {
		b.reply(chatID, "Bad date.")
		return
	}
	game := model.GameType(st.Booking.Game)

	existing, err := b.db.HoldingIntervals(ctx, st.Booking.Date, game)
	if err != nil {
		b.reply(chatID, "Couldn't load the schedule, try again.")
		return
	}

	menu := slots.DayMenu(date, game, st.Booking.Units, existing, time.Now())
	amount := slots.GameAmount(game, st.Booking.Units)

	out := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"%s on %s · ₹%d\nPick a start time:", game.Label(), st.Booking.Date, amount))
	out.ReplyMarkup = slotKeyboard(menu)
	_, _ = b.tg.Send(out)
}

func (b *Bot) sendBookingConfirm(chatID int64, st *userState) {
	game := model.GameType(st.Booking.Game)
	amount := slots.GameAmount(game, st.Booking.Units)
	text := fmt.Sprintf(
		"Please check:\n\nGame: %s\nDate: %s\nTime: %s\nAmount: ₹%d\nPayment: %s\nName: %s\nPhone: %s\n\nSubmit for approval?",
		game.Label(), st.Booking.Date, st.Booking.TimeLabel, amount,
		st.Booking.Method, st.Booking.Name, st.Booking.Phone)
	out := tgbotapi.NewMessage(chatID, text)
	out.ReplyMarkup = confirmKeyboard("confirm")
	_, _ = b.tg.Send(out)
}

func (b *Bot) finalizeBooking(ctx context.Context, cq *tgbotapi.CallbackQuery, st *userState) {
	chatID := cq.Message.Chat.ID
	if st.Step != stepConfirm {
		b.reply(chatID, "This menu is stale, start again: /book")
		return
	}

	u, err := b.db.GetOrCreateUserByTelegramID(ctx, cq.From.ID, cq.From.UserName, cq.From.FirstName, cq.From.LastName)
	if err != nil {
		b.reply(chatID, "Something went wrong, try again.")
		return
	}

	date, err := time.ParseInLocation("2006-01-02", st.Booking.Date, time.Local)
	if err != nil {
		b.reply(chatID, "Bad date, start again: /book")
		return
	}
	startStr := strings.SplitN(st.Booking.TimeLabel, "-", 2)[0]
	clock, err := time.Parse("15:04", startStr)
	if err != nil {
		b.reply(chatID, "Bad slot, start again: /book")
		return
	}
	start := time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, time.Local)

	booking, err := b.lifecycle.SubmitBooking(ctx, lifecycle.BookingInput{
		UserID:    u.ID,
		Name:      st.Booking.Name,
		Phone:     st.Booking.Phone,
		Game:      model.GameType(st.Booking.Game),
		Units:     st.Booking.Units,
		StartTime: start,
		Method:    st.Booking.Method,
		UTR:       st.Booking.UTR,
	})
	switch {
	case err == nil:
	case errors.Is(err, db.ErrSlotNotAvailable):
		b.reply(chatID, "That slot was just taken. Pick another time:")
		st.Step = stepSlot
		b.sendSlots(ctx, chatID, st)
		return
	case errors.Is(err, db.ErrSlotInPast):
		b.reply(chatID, "That time has already passed. Pick another:")
		st.Step = stepSlot
		b.sendSlots(ctx, chatID, st)
		return
	case errors.Is(err, db.ErrPendingExists):
		b.reply(chatID, "You already have a request waiting for approval.")
		b.state.reset(cq.From.ID)
		return
	case errors.Is(err, db.ErrUTRRequired):
		b.reply(chatID, "UPI payments need the UTR. Paste it here:")
		st.Step = stepUTR
		return
	default:
		b.reply(chatID, "Couldn't submit the booking, try again.")
		return
	}

	b.state.reset(cq.From.ID)
	b.reply(chatID, fmt.Sprintf(
		"Request %s submitted: %s %s %s · ₹%d\nStatus: pending approval.",
		booking.Ref, booking.Game.Label(), booking.Date(), booking.TimeLabel(), booking.Amount))
	b.notifyAdminsNewBooking(booking)
}

func (b *Bot) handleMembership(ctx context.Context, msg *tgbotapi.Message) {
	u, err := b.db.GetOrCreateUserByTelegramID(ctx, msg.From.ID, msg.From.UserName, msg.From.FirstName, msg.From.LastName)
	if err != nil {
		b.reply(msg.Chat.ID, "Something went wrong, try again.")
		return
	}

	m, err := b.lifecycle.Membership(ctx, u.ID)
	if err != nil {
		b.reply(msg.Chat.ID, "Something went wrong, try again.")
		return
	}

	if m != nil && m.Status == model.MembershipPending {
		b.reply(msg.Chat.ID, "Your membership application is waiting for approval.")
		return
	}
	if m != nil && m.Status == model.MembershipActive && !m.Expired(time.Now()) {
		out := tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf(
			"Your membership is active: %d days left.", m.RemainingDays(time.Now())))
		out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🚫 Cancel membership", "mcancel"),
			),
		)
		_, _ = b.tg.Send(out)
		return
	}

	b.state.reset(msg.From.ID)
	st := b.state.get(msg.From.ID)
	st.Step = stepMemberName
	b.reply(msg.Chat.ID, fmt.Sprintf(
		"%d-day membership for ₹%d. Let's apply.\n\nYour full name:",
		model.MembershipDays, lifecycle.MembershipFee))
}

func (b *Bot) sendMembershipConfirm(chatID int64, st *userState) {
	text := fmt.Sprintf(
		"Please check:\n\nName: %s\nPhone: %s\nEmail: %s\nID: %s %s\nFee: ₹%d\nPayment: %s\n\nSubmit for approval?",
		st.Membership.FullName, st.Membership.Phone, st.Membership.Email,
		strings.ToUpper(st.Membership.GovtIDType), st.Membership.GovtIDNo,
		lifecycle.MembershipFee, st.Membership.Method)
	out := tgbotapi.NewMessage(chatID, text)
	out.ReplyMarkup = confirmKeyboard("mconfirm")
	_, _ = b.tg.Send(out)
}

func (b *Bot) finalizeMembership(ctx context.Context, cq *tgbotapi.CallbackQuery, st *userState) {
	chatID := cq.Message.Chat.ID
	if st.Step != stepMemberConfirm {
		b.reply(chatID, "This menu is stale, start again: /membership")
		return
	}

	u, err := b.db.GetOrCreateUserByTelegramID(ctx, cq.From.ID, cq.From.UserName, cq.From.FirstName, cq.From.LastName)
	if err != nil {
		b.reply(chatID, "Something went wrong, try again.")
		return
	}

	m, err := b.lifecycle.SubmitMembership(ctx, lifecycle.MembershipInput{
		UserID:     u.ID,
		FullName:   st.Membership.FullName,
		Phone:      st.Membership.Phone,
		Email:      st.Membership.Email,
		GovtIDType: st.Membership.GovtIDType,
		GovtIDNo:   st.Membership.GovtIDNo,
		Method:     st.Membership.Method,
		UTR:        st.Membership.UTR,
	})
	switch {
	case err == nil:
	case errors.Is(err, db.ErrPendingExists):
		b.reply(chatID, "You already have an open membership or application.")
		b.state.reset(cq.From.ID)
		return
	case errors.Is(err, db.ErrUTRRequired):
		b.reply(chatID, "UPI payments need the UTR. Paste it here:")
		st.Step = stepMemberUTR
		return
	default:
		b.reply(chatID, "Couldn't submit the application, try again.")
		return
	}

	b.state.reset(cq.From.ID)
	b.reply(chatID, "Application submitted. We'll notify you once it's reviewed.")
	b.notifyAdminsNewMembership(m)
}

func (b *Bot) handleCancelMembership(ctx context.Context, chatID int64, from *tgbotapi.User) {
	u, err := b.db.GetOrCreateUserByTelegramID(ctx, from.ID, from.UserName, from.FirstName, from.LastName)
	if err != nil {
		b.reply(chatID, "Something went wrong, try again.")
		return
	}
	switch err := b.lifecycle.CancelMembership(ctx, u.ID); {
	case err == nil:
		b.reply(chatID, "Membership cancelled.")
	case errors.Is(err, db.ErrMembershipNotFound):
		b.reply(chatID, "You have no active membership.")
	default:
		b.reply(chatID, "Couldn't cancel the membership, try again.")
	}
}

func (b *Bot) handleMyBookings(ctx context.Context, msg *tgbotapi.Message) {
	u, err := b.db.GetOrCreateUserByTelegramID(ctx, msg.From.ID, msg.From.UserName, msg.From.FirstName, msg.From.LastName)
	if err != nil {
		b.reply(msg.Chat.ID, "Something went wrong, try again.")
		return
	}

	bookings, err := b.lifecycle.UserBookings(ctx, u.ID, 20)
	if err != nil {
		b.reply(msg.Chat.ID, "Couldn't load your bookings.")
		return
	}
	if len(bookings) == 0 {
		b.reply(msg.Chat.ID, "You have no bookings yet. /book to make one.")
		return
	}

	now := time.Now()
	var upcoming, past []string
	for i := range bookings {
		bk := &bookings[i]
		line := fmt.Sprintf("%s %s %s | %s | ₹%d | %s",
			bk.Ref, bk.Date(), bk.TimeLabel(), bk.Game.Label(), bk.Amount, bk.Status)
		if bk.EndTime.After(now) {
			upcoming = append(upcoming, line)
		} else {
			past = append(past, line)
		}
	}

	var sb strings.Builder
	if len(upcoming) > 0 {
		sb.WriteString("Upcoming:\n")
		for _, line := range upcoming {
			sb.WriteString(line + "\n")
		}
	}
	if len(past) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Past:\n")
		for _, line := range past {
			sb.WriteString(line + "\n")
		}
	}
	b.reply(msg.Chat.ID, sb.String())
}

func (b *Bot) handleLinkApp(ctx context.Context, msg *tgbotapi.Message) {
	parts := strings.Fields(msg.Text)
	if len(parts) < 2 {
		b.reply(msg.Chat.ID, "Usage: /link_app <push token from the app>")
		return
	}
	u, err := b.db.GetOrCreateUserByTelegramID(ctx, msg.From.ID, msg.From.UserName, msg.From.FirstName, msg.From.LastName)
	if err != nil {
		b.reply(msg.Chat.ID, "Something went wrong, try again.")
		return
	}
	if err := b.db.SetPushToken(ctx, u.ID, parts[1]); err != nil {
		b.reply(msg.Chat.ID, "Couldn't link the app, try again.")
		return
	}
	b.reply(msg.Chat.ID, "App linked. You'll get push notifications too.")
}

func (b *Bot) handlePendingFeed(ctx context.Context, chatID int64) {
	items, err := b.lifecycle.PendingApprovals(ctx)
	if err != nil {
		b.reply(chatID, "Couldn't load the pending feed.")
		return
	}
	if len(items) == 0 {
		b.reply(chatID, "Nothing pending.")
		return
	}

	for _, item := range items {
		kind := "b"
		if item.Kind == model.ApprovalMembership {
			kind = "m"
		}
		utr := item.UTR
		if utr == "" {
			utr = "-"
		}
		text := fmt.Sprintf("🆕 %s\n%s\n👤 %s\n📞 %s\n₹%d · %s · UTR %s",
			strings.ToUpper(string(item.Kind)), item.Detail, item.Name, item.Phone,
			item.Amount, item.Method, utr)
		out := tgbotapi.NewMessage(chatID, text)
		out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Approve", fmt.Sprintf("mgr:approve:%s:%d", kind, item.ID)),
				tgbotapi.NewInlineKeyboardButtonData("❌ Reject", fmt.Sprintf("mgr:reject:%s:%d", kind, item.ID)),
			),
		)
		_, _ = b.tg.Send(out)
	}
}

func (b *Bot) handleAdminDecision(ctx context.Context, chatID, userID int64, data string) {
	if !b.isAdmin(userID) {
		return
	}

	parts := strings.Split(data, ":")
	if len(parts) != 4 {
		return
	}
	decision, kind := parts[1], parts[2]
	id, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return
	}

	switch {
	case kind == "b" && decision == "approve":
		if _, err := b.lifecycle.ApproveBooking(ctx, id); err != nil {
			b.replyDecisionError(chatID, err)
			return
		}
		b.reply(chatID, fmt.Sprintf("Booking #%d approved", id))
	case kind == "b" && decision == "reject":
		if _, err := b.lifecycle.RejectBooking(ctx, id); err != nil {
			b.replyDecisionError(chatID, err)
			return
		}
		b.reply(chatID, fmt.Sprintf("Booking #%d rejected", id))
	case kind == "m" && decision == "approve":
		if _, err := b.lifecycle.ApproveMembership(ctx, id); err != nil {
			b.replyDecisionError(chatID, err)
			return
		}
		b.reply(chatID, fmt.Sprintf("Membership #%d approved", id))
	case kind == "m" && decision == "reject":
		if _, err := b.lifecycle.RejectMembership(ctx, id); err != nil {
			b.replyDecisionError(chatID, err)
			return
		}
		b.reply(chatID, fmt.Sprintf("Membership #%d rejected", id))
	}
}

// handleFindBookings searches bookings by date (YYYY-MM-DD), phone or name.
func (b *Bot) handleFindBookings(ctx context.Context, chatID int64, query string) {
	if query == "" {
		b.reply(chatID, "Usage: /find <YYYY-MM-DD | phone | name>")
		return
	}

	var date, name, phone string
	switch {
	case isDate(query):
		date = query
	case isPhone(query):
		phone = query
	default:
		name = query
	}

	bookings, err := b.db.SearchBookings(ctx, date, name, "", phone)
	if err != nil {
		b.reply(chatID, "Search failed, try again.")
		return
	}
	if len(bookings) == 0 {
		b.reply(chatID, "No bookings matched.")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔎 %d match(es):\n\n", len(bookings)))
	for _, bk := range bookings {
		sb.WriteString(fmt.Sprintf("🔹 %s %s %s | %s | %s | ₹%d | %s\n",
			bk.Ref, bk.Date(), bk.TimeLabel(), bk.Game.Label(), bk.Name, bk.Amount, bk.Status))
	}
	b.reply(chatID, sb.String())
}

// handleRevokeMembership cancels a member's active membership by their
// Telegram ID.
func (b *Bot) handleRevokeMembership(ctx context.Context, chatID int64, arg string) {
	telegramID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.reply(chatID, "Usage: /revoke <telegram id>")
		return
	}
	u, err := b.db.GetUserByTelegramID(ctx, telegramID)
	if err != nil || u == nil {
		b.reply(chatID, "No such user.")
		return
	}
	switch err := b.lifecycle.CancelMembership(ctx, u.ID); {
	case err == nil:
		b.reply(chatID, fmt.Sprintf("Membership revoked for %s.", u.DisplayName()))
		_ = b.SendText(u.TelegramID, "Your membership has been cancelled by the club.")
	case errors.Is(err, db.ErrMembershipNotFound):
		b.reply(chatID, "That user has no active membership.")
	default:
		b.reply(chatID, "Couldn't revoke the membership.")
	}
}

// handleListUsers shows the registered accounts with their Telegram IDs,
// admins marked.
func (b *Bot) handleListUsers(ctx context.Context, chatID int64) {
	users, err := b.db.ListUsers(ctx)
	if err != nil {
		b.reply(chatID, "Couldn't load the user list.")
		return
	}
	if len(users) == 0 {
		b.reply(chatID, "No registered users yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👥 %d user(s):\n\n", len(users)))
	for _, u := range users {
		mark := ""
		if u.IsAdmin {
			mark = " 🛡 admin"
		}
		sb.WriteString(fmt.Sprintf("🔹 %s | id %d%s\n", u.DisplayName(), u.TelegramID, mark))
	}
	sb.WriteString("\nRemove with /deluser <telegram id>")
	b.reply(chatID, sb.String())
}

// handleDeleteUser removes an account by Telegram ID. Admin accounts are
// refused at the store layer.
func (b *Bot) handleDeleteUser(ctx context.Context, chatID int64, arg string) {
	telegramID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.reply(chatID, "Usage: /deluser <telegram id>")
		return
	}
	u, err := b.db.GetUserByTelegramID(ctx, telegramID)
	if err != nil || u == nil {
		b.reply(chatID, "No such user.")
		return
	}
	switch err := b.db.DeleteUser(ctx, u.ID); {
	case err == nil:
		b.reply(chatID, fmt.Sprintf("Removed %s.", u.DisplayName()))
	case errors.Is(err, db.ErrAdminProtected):
		b.reply(chatID, "Admins can't be removed. Take them off the admin list first.")
	default:
		b.reply(chatID, "Couldn't remove the user.")
	}
}

func (b *Bot) handleExport(chatID int64) {
	if b.onExport == nil {
		b.reply(chatID, "Export is not configured.")
		return
	}
	b.reply(chatID, "Building the report...")
	go func() {
		if err := b.onExport(); err != nil {
			b.logger.Error().Err(err).Msg("on-demand export failed")
			b.reply(chatID, "Export failed.")
		}
	}()
}

func (b *Bot) replyDecisionError(chatID int64, err error) {
	if errors.Is(err, db.ErrTerminalStatus) {
		b.reply(chatID, "Already decided; approvals and rejections are final.")
		return
	}
	b.reply(chatID, "Couldn't apply the decision.")
}

func (b *Bot) handleTodaySchedule(ctx context.Context, chatID int64) {
	today := time.Now().Format("2006-01-02")
	bookings, err := b.db.ListBookingsByDate(ctx, today)
	if err != nil {
		b.reply(chatID, "Couldn't load the schedule.")
		return
	}
	if len(bookings) == 0 {
		b.reply(chatID, "No bookings today ("+today+").")
		return
	}

	var sb strings.Builder
	sb.WriteString("🗓 Today (" + today + "):\n\n")
	for _, bk := range bookings {
		sb.WriteString(fmt.Sprintf("🔹 %s | %s | %s | %s\n",
			bk.TimeLabel(), bk.Game.Label(), bk.Name, bk.Status))
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) notifyAdminsNewBooking(bk *model.Booking) {
	utr := bk.UTR
	if utr == "" {
		utr = "-"
	}
	text := fmt.Sprintf("🆕 Booking %s\n%s %s %s\n👤 %s · 📞 %s\n₹%d · %s · UTR %s",
		bk.Ref, bk.Game.Label(), bk.Date(), bk.TimeLabel(),
		bk.Name, bk.Phone, bk.Amount, bk.Method, utr)
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", fmt.Sprintf("mgr:approve:b:%d", bk.ID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", fmt.Sprintf("mgr:reject:b:%d", bk.ID)),
		),
	)
	for _, adminID := range b.adminIDs() {
		out := tgbotapi.NewMessage(adminID, text)
		out.ReplyMarkup = markup
		_, _ = b.tg.Send(out)
	}
}

func (b *Bot) notifyAdminsNewMembership(m *model.MembershipRequest) {
	text := fmt.Sprintf("🆕 Membership application #%d\n👤 %s · 📞 %s\n₹%d · %s",
		m.ID, m.FullName, m.Phone, m.Fee, m.Method)
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", fmt.Sprintf("mgr:approve:m:%d", m.ID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", fmt.Sprintf("mgr:reject:m:%d", m.ID)),
		),
	)
	for _, adminID := range b.adminIDs() {
		out := tgbotapi.NewMessage(adminID, text)
		out.ReplyMarkup = markup
		_, _ = b.tg.Send(out)
	}
}

func (b *Bot) isAdmin(id int64) bool {
	b.adminsMu.RLock()
	defer b.adminsMu.RUnlock()
	_, ok := b.admins[id]
	return ok
}

func (b *Bot) adminIDs() []int64 {
	b.adminsMu.RLock()
	defer b.adminsMu.RUnlock()
	ids := make([]int64, 0, len(b.admins))
	for id := range b.admins {
		ids = append(ids, id)
	}
	return ids
}

// UpdateAdmins replaces the admin set. Called when the config file is
// reloaded.
func (b *Bot) UpdateAdmins(admins []int64) {
	set := make(map[int64]struct{}, len(admins))
	for _, id := range admins {
		set[id] = struct{}{}
	}
	b.adminsMu.Lock()
	b.admins = set
	b.adminsMu.Unlock()
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	_, _ = b.tg.Send(msg)
}

// SendText implements the broadcast fan-out's Telegram leg.
func (b *Bot) SendText(chatID int64, text string) error {
	_, err := b.tg.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendDocument delivers a file to every admin. Used for the monthly audit
// report.
func (b *Bot) SendDocument(_ context.Context, filename string, data io.Reader, caption string) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	for _, adminID := range b.adminIDs() {
		doc := tgbotapi.NewDocument(adminID, tgbotapi.FileBytes{Name: filename, Bytes: raw})
		doc.Caption = caption
		if _, err := b.tg.Send(doc); err != nil {
			return err
		}
	}
	return nil
}

// NotifyReminder tells a member their approved slot starts soon.
func (b *Bot) NotifyReminder(ctx context.Context, bk model.Booking) error {
	u, err := b.db.GetUserByID(ctx, bk.UserID)
	if err != nil || u == nil {
		return fmt.Errorf("load user %d: %w", bk.UserID, err)
	}
	text := fmt.Sprintf("⏰ Reminder: your %s table is booked today %s.",
		bk.Game.Label(), bk.TimeLabel())
	if err := b.SendText(u.TelegramID, text); err != nil {
		return err
	}
	b.sendPushTo(ctx, u, "Upcoming booking", text)
	return nil
}

// SetBroadcastHandler installs the broadcast fan-out callback.
func (b *Bot) SetBroadcastHandler(fn func(adminID int64, body string)) {
	b.onBroadcast = fn
}

// SetExportHandler installs the on-demand report export callback.
func (b *Bot) SetExportHandler(fn func() error) {
	b.onExport = fn
}

func (b *Bot) onBookingDecided(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bk, err := b.db.GetBooking(ctx, e.RecordID)
	if err != nil {
		return
	}
	u, err := b.db.GetUserByID(ctx, bk.UserID)
	if err != nil || u == nil {
		return
	}

	var text string
	if bk.Status == model.StatusApproved {
		text = fmt.Sprintf("✅ Your booking %s is approved: %s %s %s.",
			bk.Ref, bk.Game.Label(), bk.Date(), bk.TimeLabel())
	} else {
		text = fmt.Sprintf("❌ Your booking %s was rejected. The slot has been released.", bk.Ref)
	}
	_ = b.SendText(u.TelegramID, text)
	b.sendPushTo(ctx, u, "Booking update", text)
}

func (b *Bot) onMembershipDecided(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m, err := b.db.GetMembershipRequest(ctx, e.RecordID)
	if err != nil {
		return
	}
	u, err := b.db.GetUserByID(ctx, m.UserID)
	if err != nil || u == nil {
		return
	}

	var text string
	if m.Status == model.MembershipActive {
		text = fmt.Sprintf("✅ Your membership is active for the next %d days.", model.MembershipDays)
	} else {
		text = "❌ Your membership application was rejected."
	}
	_ = b.SendText(u.TelegramID, text)
	b.sendPushTo(ctx, u, "Membership update", text)
}

func (b *Bot) sendPushTo(ctx context.Context, u *model.User, title, body string) {
	if b.pusher == nil || u.PushToken == "" {
		return
	}
	_ = b.pusher.Send(ctx, []push.Message{{To: u.PushToken, Title: title, Body: body}})
}

func normalizePhone(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	repl := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "\t", "")
	s = repl.Replace(s)
	if strings.HasPrefix(s, "+") {
		s = "+" + filterDigits(s[1:])
	} else {
		s = filterDigits(s)
	}
	digits := strings.TrimPrefix(s, "+")
	if len(digits) < 10 || len(digits) > 15 {
		return "", false
	}
	return s, true
}

func isDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func isPhone(s string) bool {
	_, ok := normalizePhone(s)
	return ok
}

func filterDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
