package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"katalog/internal/catalog"
	"katalog/internal/models"
	"katalog/internal/service"
)

// Scraper is what the bot needs from service.Scraper.
type Scraper interface {
	Scrape(ctx context.Context, rawURL string) (service.Result, error)
	Save(ctx context.Context, b models.InternalBook) (int64, error)
	HasRepository() bool
}

// Bot lets admins paste a product link, review the scraped record and take
// it into the catalog.
type Bot struct {
	bot        *tgbotapi.BotAPI
	scraper    Scraper
	admins     map[int64]bool
	sessions   map[int64]*scrapeSession
	sessionsMu sync.Mutex
}

// scrapeSession is the last scrape of a chat, kept until saved or replaced.
type scrapeSession struct {
	book models.InternalBook
}

const (
	cbSavePrefix  = "save:"
	scrapeTimeout = 2 * time.Minute
)

var urlRe = regexp.MustCompile(`https?://[^\s<>"]+`)

func NewBot(token string, scraper Scraper, adminIDs []int64) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	bot.Debug = false
	log.Printf("telegram: authorized as %s", bot.Self.UserName)

	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}

	return &Bot{
		bot:      bot,
		scraper:  scraper,
		admins:   admins,
		sessions: make(map[int64]*scrapeSession),
	}, nil
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			}
			if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
			}
		}
	}
}

func (b *Bot) isAdmin(user *tgbotapi.User) bool {
	return user != nil && b.admins[user.ID]
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if !b.isAdmin(msg.From) {
		log.Printf("telegram: refused chat=%d user=%v", chatID, msg.From)
		b.sendMessage(chatID, "⛔ Kein Zugriff.")
		return
	}

	if msg.IsCommand() && msg.Command() == "start" {
		b.sendMessage(chatID, "Hallo! Schick mir einen Produktlink von Amazon oder Thalia, ich lese die Buchdaten aus.")
		return
	}

	link := extractURL(msg.Text)
	if link == "" {
		b.sendMessage(chatID, "Bitte einen Produktlink von Amazon oder Thalia schicken.")
		return
	}

	b.sendMessage(chatID, "🔎 Lese Produktseite…")

	scrapeCtx, cancel := context.WithTimeout(ctx, scrapeTimeout)
	defer cancel()
	res, err := b.scraper.Scrape(scrapeCtx, link)
	if err != nil {
		log.Printf("telegram: scrape %s: %v", link, err)
		b.sendMessage(chatID, errorText(err))
		return
	}

	b.storeSession(chatID, res.Book)
	b.sendBook(chatID, res.Book)
}

func (b *Bot) storeSession(chatID int64, book models.InternalBook) {
	b.sessionsMu.Lock()
	defer b.sessionsMu.Unlock()

	b.sessions[chatID] = &scrapeSession{book: book}
}

// takeSession returns and forgets the chat's last scrape if it is for asin.
func (b *Bot) takeSession(chatID int64, asin string) (models.InternalBook, bool) {
	b.sessionsMu.Lock()
	defer b.sessionsMu.Unlock()

	session, ok := b.sessions[chatID]
	if !ok || session.book.ASIN != asin {
		return models.InternalBook{}, false
	}
	delete(b.sessions, chatID)
	return session.book, true
}

func (b *Bot) sendBook(chatID int64, book models.InternalBook) {
	caption := formatSummary(book)

	var markup *tgbotapi.InlineKeyboardMarkup
	if b.scraper.HasRepository() {
		m := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("In Katalog übernehmen", cbSavePrefix+book.ASIN),
		))
		markup = &m
	}

	if book.CoverURL != "" && book.CoverURL != catalog.DefaultPlaceholderCover {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(book.CoverURL))
		photo.Caption = caption
		if markup != nil {
			photo.ReplyMarkup = *markup
		}
		_, err := b.bot.Send(photo)
		if err == nil {
			return
		}
		log.Printf("telegram: send cover %s: %v", book.CoverURL, err)
	}

	msg := tgbotapi.NewMessage(chatID, caption)
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	b.bot.Send(msg)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	if !b.isAdmin(cb.From) {
		b.bot.Request(tgbotapi.NewCallback(cb.ID, "Kein Zugriff"))
		return
	}
	if !strings.HasPrefix(cb.Data, cbSavePrefix) {
		log.Printf("telegram: unknown callback data %q", cb.Data)
		return
	}

	b.bot.Request(tgbotapi.NewCallback(cb.ID, "Speichere…"))

	asin := strings.TrimPrefix(cb.Data, cbSavePrefix)
	book, ok := b.takeSession(chatID, asin)
	if !ok {
		b.sendMessage(chatID, "⚠️ Diese Vorschau ist veraltet. Bitte den Link noch einmal schicken.")
		return
	}

	id, err := b.scraper.Save(ctx, book)
	if err != nil {
		log.Printf("telegram: save %s: %v", asin, err)
		b.storeSession(chatID, book)
		b.sendMessage(chatID, errorText(err))
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("✅ „%s“ ist im Katalog (#%d).", book.Title, id))
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.bot.Send(msg); err != nil {
		log.Printf("telegram: send message: %v", err)
	}
}

func extractURL(text string) string {
	return strings.TrimRight(urlRe.FindString(text), ".,;)!")
}

// formatSummary renders the fields an editor checks before importing.
func formatSummary(book models.InternalBook) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📖 %s\n✍️ %s\n", book.Title, book.Author)

	line := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fmt.Fprintf(&sb, "%s: %s\n", label, value)
		}
	}
	line("Verlag", book.Publisher)
	line("Erschienen", book.PublicationDate)
	if book.PageCount != nil {
		line("Seiten", fmt.Sprint(*book.PageCount))
	}
	line("ISBN", book.ISBN)
	line("ASIN", book.ASIN)
	line("Preis", book.Price)
	line("Sprache", book.Language)
	if book.Type == string(models.MediaAudiobook) {
		line("Format", "Hörbuch")
	} else {
		line("Format", "E-Book")
	}
	line("Kategorien", book.Genre)
	return strings.TrimRight(sb.String(), "\n")
}

func errorText(err error) string {
	var ve *catalog.ValidationError
	switch {
	case errors.As(err, &ve):
		return "❌ Unvollständige Daten, es fehlt: " + strings.Join(ve.Missing, ", ")
	case errors.Is(err, service.ErrInvalidURL):
		return "❌ Das ist kein Produktlink von Amazon oder Thalia."
	case errors.Is(err, service.ErrFetchFailed):
		return "❌ Die Seite konnte nicht geladen werden. Später noch einmal versuchen."
	case errors.Is(err, service.ErrNoRepository):
		return "❌ Kein Katalog konfiguriert."
	default:
		return "❌ Fehler: " + err.Error()
	}
}
