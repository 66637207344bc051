package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"

	"formbot/config"
	"formbot/model"
	"formbot/repo"
	"formbot/review"
	"formbot/session"
	"formbot/settings"
)

// Event identifiers emitted in keyboards and accepted as commands.
const (
	cmdStart   = "/start"
	cmdHelp    = "/help"
	cmdForms   = "/forms"
	cmdSkip    = "/skip"
	cmdCancel  = "/cancel"
	cmdQueue   = "/queue"
	cmdBind    = "/bind"
	cmdQuorum  = "/quorum"
	cmdAdmin   = "/admin"
	cmdUnadmin = "/unadmin"
	cmdMod     = "/mod"
	cmdUnmod   = "/unmod"
	cmdToggle  = "/toggle"

	cbForm    = "form_"
	cbApprove = "approve_"
	cbReject  = "reject_"

	btnSkip   = "⏭ Skip"
	btnCancel = "❌ Cancel"
)

// Bot adapts the Telegram transport onto the session and review
// engines. It holds no workflow state of its own; engines mutate under
// their locks and hand back delivery plans which are sent from here.
type Bot struct {
	api      *bot.Bot
	sessions *session.Manager
	reviews  *review.Engine
	store    *settings.Store
	cfg      config.Config
	archive  repo.Archiver
	registry *Registry
}

// New wires the registry and validates that every identifier the bot
// emits has a handler.
func New(sessions *session.Manager, reviews *review.Engine, store *settings.Store, cfg config.Config, archive repo.Archiver) (*Bot, error) {
	h := &Bot{
		sessions: sessions,
		reviews:  reviews,
		store:    store,
		cfg:      cfg,
		archive:  archive,
		registry: NewRegistry(),
	}

	h.registry.Command(cmdStart, h.start)
	h.registry.Command(cmdHelp, h.help)
	h.registry.Command(cmdForms, h.forms)
	h.registry.Command(cmdSkip, h.skip)
	h.registry.Command(cmdCancel, h.cancel)
	h.registry.Command(cmdQueue, h.queue)
	h.registry.Command(cmdBind, h.bind)
	h.registry.Command(cmdQuorum, h.quorum)
	h.registry.Command(cmdAdmin, h.addAdmin)
	h.registry.Command(cmdUnadmin, h.removeAdmin)
	h.registry.Command(cmdMod, h.addModerator)
	h.registry.Command(cmdUnmod, h.removeModerator)
	h.registry.Command(cmdToggle, h.toggleTemplate)

	h.registry.Callback(cbForm, h.chooseForm)
	h.registry.Callback(cbApprove, h.vote(model.Approve))
	h.registry.Callback(cbReject, h.vote(model.Reject))

	err := h.registry.Validate(
		[]string{cmdStart, cmdHelp, cmdForms, cmdSkip, cmdCancel, cmdQueue,
			cmdBind, cmdQuorum, cmdAdmin, cmdUnadmin, cmdMod, cmdUnmod, cmdToggle},
		[]string{cbForm, cbApprove, cbReject},
	)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Bind attaches the transport client. Must be called before the bot
// starts handling updates.
func (h *Bot) Bind(api *bot.Bot) {
	h.api = api
}

// Handle is the default update handler given to the transport.
func (h *Bot) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	}
}

func (h *Bot) handleCallback(ctx context.Context, q *models.CallbackQuery) {
	_, err := h.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: q.ID})
	if err != nil {
		log.Warn().Err(err).Msg("error answering callback query")
	}

	ev := Event{UserID: q.From.ID, ChatID: q.From.ID, Username: q.From.Username}
	handled, err := h.registry.DispatchCallback(ctx, q.Data, ev)
	if err != nil {
		log.Warn().Err(err).Int64("user", ev.UserID).Str("data", q.Data).Msg("callback failed")
	}
	if !handled {
		log.Debug().Str("data", q.Data).Msg("unroutable callback data, stale keyboard")
	}
}

func (h *Bot) handleMessage(ctx context.Context, msg *models.Message) {
	if msg.From == nil {
		return
	}
	ev := Event{UserID: msg.From.ID, ChatID: msg.Chat.ID, Username: msg.From.Username}
	log.Debug().Int64("user", ev.UserID).Str("text", msg.Text).Msg("message received")

	if strings.HasPrefix(msg.Text, "/") {
		handled, err := h.registry.DispatchCommand(ctx, msg.Text, ev)
		if err != nil {
			log.Warn().Err(err).Int64("user", ev.UserID).Str("text", msg.Text).Msg("command failed")
		}
		if !handled {
			h.send(ctx, ev.ChatID, "I didn't understand that command. Use /help.", nil)
		}
		return
	}

	h.sessionInput(ctx, ev, inputFromMessage(msg))
}

// inputFromMessage maps a transport message onto a validator input.
// The skip and cancel reply-keyboard buttons arrive as plain text.
func inputFromMessage(msg *models.Message) model.Input {
	switch {
	case msg.Text == btnSkip:
		return model.Input{Kind: model.InputSkip}
	case msg.Text == btnCancel:
		return model.Input{Kind: model.InputCancel}
	case msg.Document != nil:
		return model.Input{Kind: model.InputFile, Payload: msg.Document.FileID}
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		return model.Input{Kind: model.InputFile, Payload: largest.FileID}
	default:
		return model.Input{Kind: model.InputText, Payload: msg.Text}
	}
}

func (h *Bot) sessionInput(ctx context.Context, ev Event, in model.Input) {
	out, err := h.sessions.Input(ev.UserID, in)
	if err != nil {
		if errors.Is(err, model.ErrNoSession) {
			h.send(ctx, ev.ChatID, "Nothing in progress. Use /forms to pick a form.", nil)
			return
		}
		// Corrupt session, already discarded; the reply asks the user
		// to start over.
		log.Error().Err(err).Int64("user", ev.UserID).Msg("session input failed")
	}
	h.deliver(ctx, ev, out)
}

// deliver sends a session outcome: the reply prompt and, when the
// session just completed, the reviewer fan-out.
func (h *Bot) deliver(ctx context.Context, ev Event, out session.Outcome) {
	if out.Reply != nil {
		switch {
		case out.Rejected:
			// The entry's incorrect message; the prompt keyboard stays
			// up for the retry.
			h.send(ctx, ev.ChatID, out.Reply.Text, nil)
		case out.Done != nil || !h.sessions.Active(ev.UserID):
			// Completion, cancellation or a discarded session: the
			// reply keyboard comes down with the session.
			h.sendRemoveKeyboard(ctx, ev.ChatID, out.Reply.Text)
		default:
			h.sendPrompt(ctx, ev.ChatID, out.Reply)
		}
	}
	if out.Done == nil {
		return
	}

	snap := h.store.Snapshot()
	_, notices := h.reviews.Submit(ev.UserID, ev.Username, out.Done.TemplateIndex, out.Done.Answers, snap)
	for _, n := range notices {
		h.send(ctx, n.TargetID, n.Text, voteKeyboard(n.VoteButtons))
	}
}

func (h *Bot) start(ctx context.Context, ev Event) error {
	h.send(ctx, ev.ChatID, h.cfg.Welcome, nil)
	return nil
}

func (h *Bot) help(ctx context.Context, ev Event) error {
	text := `Commands:
/forms – pick a form to fill out
/skip – skip the current entry, when allowed
/cancel – abandon the form in progress
/queue – pending suggestions (reviewers)`
	if h.store.Snapshot().IsAdmin(ev.UserID) {
		text += `
/bind <channel> – bind the publication channel
/quorum <approve> <reject> – set vote thresholds
/admin <id> / /unadmin <id> – manage admins
/mod <id> / /unmod <id> – manage moderators
/toggle <idx> – enable or disable a template`
	}
	h.send(ctx, ev.ChatID, text, nil)
	return nil
}

func (h *Bot) forms(ctx context.Context, ev Event) error {
	snap := h.store.Snapshot()
	var rows [][]models.InlineKeyboardButton
	for idx, t := range h.cfg.Templates {
		if !snap.TemplateActive(idx) {
			continue
		}
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         t.Title,
			CallbackData: cbForm + strconv.Itoa(idx),
		}})
	}
	if len(rows) == 0 {
		h.send(ctx, ev.ChatID, "No forms are available right now.", nil)
		return nil
	}
	h.send(ctx, ev.ChatID, "Select a form to fill out:", &models.InlineKeyboardMarkup{InlineKeyboard: rows})
	return nil
}

func (h *Bot) chooseForm(ctx context.Context, ev Event) error {
	idx, err := strconv.Atoi(ev.Data)
	if err != nil {
		return fmt.Errorf("%w: %q", model.ErrUnknownTemplate, ev.Data)
	}
	out, err := h.sessions.Choose(ev.UserID, idx, h.store.Snapshot())
	if err != nil {
		h.send(ctx, ev.ChatID, "That form is not available.", nil)
		return err
	}
	h.sendPrompt(ctx, ev.ChatID, out.Reply)
	return nil
}

func (h *Bot) skip(ctx context.Context, ev Event) error {
	h.sessionInput(ctx, ev, model.Input{Kind: model.InputSkip})
	return nil
}

func (h *Bot) cancel(ctx context.Context, ev Event) error {
	if h.sessions.Cancel(ev.UserID) {
		h.sendRemoveKeyboard(ctx, ev.ChatID, "Operation canceled.")
	} else {
		h.send(ctx, ev.ChatID, "Nothing to cancel.", nil)
	}
	return nil
}

// vote returns the handler for one decision; approve and reject share
// everything but the recorded value.
func (h *Bot) vote(d model.Decision) Func {
	return func(ctx context.Context, ev Event) error {
		snap := h.store.Snapshot()
		res, err := h.reviews.Vote(ev.Data, ev.UserID, d, snap)
		switch {
		case errors.Is(err, model.ErrNotReviewer):
			h.send(ctx, ev.ChatID, "You are not a reviewer.", nil)
			return nil
		case errors.Is(err, model.ErrAlreadyDecided):
			h.send(ctx, ev.ChatID, "This suggestion has already been decided.", nil)
			return nil
		case errors.Is(err, model.ErrChannelUnbound):
			h.send(ctx, ev.ChatID, "Vote recorded, but no channel is bound. Ask an admin to /bind one, then vote again.", nil)
			return nil
		case err != nil:
			return err
		}

		if res.Status == model.StatusPending {
			h.send(ctx, ev.ChatID, fmt.Sprintf("Vote recorded: %d approve / %d reject.", res.Approve, res.Reject), nil)
			return nil
		}

		if res.Publish != nil {
			h.send(ctx, res.Publish.TargetID, res.Publish.Text, nil)
			h.sendFiles(ctx, res.Publish.TargetID, res.Resolved)
		}
		for _, n := range res.Notices {
			h.send(ctx, n.TargetID, n.Text, nil)
		}
		h.send(ctx, ev.ChatID, fmt.Sprintf("Decision is final: %s.", res.Status), nil)

		if h.archive != nil && res.Resolved != nil {
			if _, err := h.archive.ArchiveSuggestion(ctx, res.Resolved); err != nil {
				log.Warn().Err(err).Str("suggestion", res.Resolved.ID).Msg("error archiving suggestion")
			}
		}
		return nil
	}
}

func (h *Bot) queue(ctx context.Context, ev Event) error {
	snap := h.store.Snapshot()
	if !snap.IsReviewer(ev.UserID) {
		h.send(ctx, ev.ChatID, "You are not a reviewer.", nil)
		return nil
	}
	pending := h.reviews.Pending()
	if len(pending) == 0 {
		h.send(ctx, ev.ChatID, "No pending suggestions.", nil)
		return nil
	}
	for _, sug := range pending {
		approve, reject := sug.Counts()
		text := fmt.Sprintf("%s\n\nVotes so far: %d approve / %d reject.", h.reviews.Render(sug), approve, reject)
		h.send(ctx, ev.ChatID, text, voteKeyboard(sug.ID))
	}
	return nil
}

func (h *Bot) bind(ctx context.Context, ev Event) error {
	return h.adminOp(ctx, ev, func() (string, error) {
		channel, err := strconv.ParseInt(ev.Data, 10, 64)
		if err != nil {
			return "Usage: /bind <channel id>", nil
		}
		if err := h.store.BindChannel(channel); err != nil {
			return "", err
		}
		return fmt.Sprintf("Channel bound: %d.", channel), nil
	})
}

func (h *Bot) quorum(ctx context.Context, ev Event) error {
	return h.adminOp(ctx, ev, func() (string, error) {
		fields := strings.Fields(ev.Data)
		if len(fields) != 2 {
			return "Usage: /quorum <min approvals> <min rejections>", nil
		}
		minA, errA := strconv.Atoi(fields[0])
		minR, errR := strconv.Atoi(fields[1])
		if errA != nil || errR != nil {
			return "Usage: /quorum <min approvals> <min rejections>", nil
		}
		if err := h.store.SetQuorum(minA, minR); err != nil {
			if errors.Is(err, settings.ErrBadThreshold) {
				return "Thresholds must be between 1 and the number of reviewers.", nil
			}
			return "", err
		}
		return fmt.Sprintf("Quorum set: %d to approve, %d to reject.", minA, minR), nil
	})
}

func (h *Bot) addAdmin(ctx context.Context, ev Event) error {
	return h.adminOp(ctx, ev, func() (string, error) {
		id, err := strconv.ParseInt(ev.Data, 10, 64)
		if err != nil {
			return "Usage: /admin <user id>", nil
		}
		if err := h.store.AddAdmin(id); err != nil {
			return "", err
		}
		return "Admin added.", nil
	})
}

func (h *Bot) removeAdmin(ctx context.Context, ev Event) error {
	return h.adminOp(ctx, ev, func() (string, error) {
		id, err := strconv.ParseInt(ev.Data, 10, 64)
		if err != nil {
			return "Usage: /unadmin <user id>", nil
		}
		if err := h.store.RemoveAdmin(id); err != nil {
			if errors.Is(err, settings.ErrLastAdmin) {
				return "Cannot remove the last admin.", nil
			}
			return "", err
		}
		return "Admin removed.", nil
	})
}

func (h *Bot) addModerator(ctx context.Context, ev Event) error {
	return h.adminOp(ctx, ev, func() (string, error) {
		id, err := strconv.ParseInt(ev.Data, 10, 64)
		if err != nil {
			return "Usage: /mod <user id>", nil
		}
		if err := h.store.AddModerator(id); err != nil {
			return "", err
		}
		return "Moderator added.", nil
	})
}

func (h *Bot) removeModerator(ctx context.Context, ev Event) error {
	return h.adminOp(ctx, ev, func() (string, error) {
		id, err := strconv.ParseInt(ev.Data, 10, 64)
		if err != nil {
			return "Usage: /unmod <user id>", nil
		}
		if err := h.store.RemoveModerator(id); err != nil {
			return "", err
		}
		return "Moderator removed.", nil
	})
}

func (h *Bot) toggleTemplate(ctx context.Context, ev Event) error {
	return h.adminOp(ctx, ev, func() (string, error) {
		idx, err := strconv.Atoi(ev.Data)
		if err != nil {
			return "Usage: /toggle <template index>", nil
		}
		active, err := h.store.ToggleTemplate(idx)
		if err != nil {
			if errors.Is(err, settings.ErrUnknownIndex) {
				return "No template with that index.", nil
			}
			return "", err
		}
		if active {
			return fmt.Sprintf("Template %d is now active.", idx), nil
		}
		return fmt.Sprintf("Template %d is now inactive.", idx), nil
	})
}

// adminOp guards a settings mutation behind the admin roster and sends
// the outcome text.
func (h *Bot) adminOp(ctx context.Context, ev Event, op func() (string, error)) error {
	if !h.store.Snapshot().IsAdmin(ev.UserID) {
		h.send(ctx, ev.ChatID, "Admins only.", nil)
		return nil
	}
	text, err := op()
	if err != nil {
		h.send(ctx, ev.ChatID, "That didn't work, check the logs.", nil)
		return err
	}
	h.send(ctx, ev.ChatID, text, nil)
	return nil
}

func voteKeyboard(id string) models.ReplyMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{{
		{Text: "✅ Approve", CallbackData: cbApprove + id},
		{Text: "❌ Reject", CallbackData: cbReject + id},
	}}}
}

// sendPrompt renders an entry prompt with its quick-reply options and
// the skip/cancel actions.
func (h *Bot) sendPrompt(ctx context.Context, chatID int64, p *session.Prompt) {
	var rows [][]models.KeyboardButton
	for _, opt := range p.Buttons {
		rows = append(rows, []models.KeyboardButton{{Text: opt}})
	}
	if p.Skippable {
		rows = append(rows, []models.KeyboardButton{{Text: btnSkip}})
	}
	rows = append(rows, []models.KeyboardButton{{Text: btnCancel}})
	h.send(ctx, chatID, p.Text, &models.ReplyKeyboardMarkup{
		Keyboard:       rows,
		ResizeKeyboard: true,
	})
}

// sendFiles forwards file answers of a published suggestion to the
// channel after the rendered text.
func (h *Bot) sendFiles(ctx context.Context, chatID int64, sug *model.Suggestion) {
	if sug == nil || sug.TemplateIndex < 0 || sug.TemplateIndex >= len(h.cfg.Templates) {
		return
	}
	entries := h.cfg.Templates[sug.TemplateIndex].Entries
	for i, ans := range sug.Answers {
		if i >= len(entries) || entries[i].Mode != model.ModeFile || ans.Skipped || ans.Value == "" {
			continue
		}
		_, err := h.api.SendDocument(ctx, &bot.SendDocumentParams{
			ChatID:   chatID,
			Document: &models.InputFileString{Data: ans.Value},
		})
		if err != nil {
			log.Warn().Err(err).Int64("chat", chatID).Msg("error sending document")
		}
	}
}

func (h *Bot) sendRemoveKeyboard(ctx context.Context, chatID int64, text string) {
	h.send(ctx, chatID, text, &models.ReplyKeyboardRemove{RemoveKeyboard: true})
}

// send delivers one message. Failures are reported, not retried.
func (h *Bot) send(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := h.api.SendMessage(ctx, params); err != nil {
		log.Warn().Err(err).Int64("chat", chatID).Msg("error sending message")
	}
}
