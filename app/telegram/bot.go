package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/weed35937/tele-bot-digital/app/entity"
	"github.com/weed35937/tele-bot-digital/app/factory"
	"github.com/weed35937/tele-bot-digital/app/service"
	"github.com/weed35937/tele-bot-digital/config"
)

// Bot is the chat front end: it renders menus, collects intent, and calls
// into the store and ledger services.
type Bot struct {
	api    *tgbotapi.BotAPI
	store  *service.StoreService
	orders *service.OrderService
	forms  *formSessions
	cfg    config.TelegramConfig
	logger logrus.FieldLogger
}

func NewBot(api *tgbotapi.BotAPI, store *service.StoreService, orders *service.OrderService, cfg config.TelegramConfig) *Bot {
	return &Bot{
		api:    api,
		store:  store,
		orders: orders,
		forms:  newFormSessions(),
		cfg:    cfg,
		logger: factory.NewModuleLogger("telegram-bot"),
	}
}

// Run polls for updates until ctx is canceled.
func (b *Bot) Run(ctx context.Context) {
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = b.cfg.PollTimeoutSec

	updates := b.api.GetUpdatesChan(updateCfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.handleStart(ctx, msg)
		case "addproduct":
			b.handleAddProduct(msg)
		case "cancel":
			b.forms.clear(msg.From.ID)
			b.send(tgbotapi.NewMessage(msg.Chat.ID, "Product addition cancelled."))
		}
		return
	}

	if form := b.forms.get(msg.From.ID); form != nil {
		b.handleFormAnswer(ctx, msg, form)
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	customer, err := b.store.RegisterCustomer(ctx, msg.From.ID, msg.From.UserName, msg.From.FirstName, msg.From.LastName)
	if err != nil {
		b.logger.WithError(err).Error("customer registration failed")
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "Something went wrong, please try again later."))
		return
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf(
		"Welcome to the Digital Products Store, %s! 🎉\nWhat would you like to do?",
		customer.FirstName,
	))
	reply.ReplyMarkup = mainMenuKeyboard()
	b.send(reply)
}

func (b *Bot) handleAddProduct(msg *tgbotapi.Message) {
	if !b.store.IsAdmin(msg.From.ID) {
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "Sorry, this command is only available to administrators."))
		return
	}

	b.forms.start(msg.From.ID)
	b.send(tgbotapi.NewMessage(msg.Chat.ID, "Let's add a new product! First, what's the product name?"))
}

func (b *Bot) handleFormAnswer(ctx context.Context, msg *tgbotapi.Message, form *productForm) {
	prompt, done := form.advance(strings.TrimSpace(msg.Text))
	if !done {
		b.send(tgbotapi.NewMessage(msg.Chat.ID, prompt))
		return
	}

	b.forms.clear(msg.From.ID)

	_, err := b.store.CreateProduct(ctx, msg.From.ID, form.input)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			b.send(tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf("That didn't work: %v. Please start over with /addproduct.", err)))
			return
		}
		b.logger.WithError(err).Error("product creation failed")
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "Something went wrong, please try again later."))
		return
	}

	b.send(tgbotapi.NewMessage(msg.Chat.ID, "Product added successfully! ✅"))
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Message == nil || query.From == nil {
		return
	}

	// Acknowledge first so the client stops its spinner.
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.WithError(err).Debug("callback ack failed")
	}

	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID

	cmd := parseCallback(query.Data)
	switch cmd.kind {
	case commandMainMenu:
		b.edit(chatID, messageID, "What would you like to do?", mainMenuKeyboard())
	case commandViewProducts:
		b.showProducts(ctx, chatID, messageID)
	case commandMyOrders:
		b.showOrders(ctx, query.From.ID, chatID, messageID)
	case commandSelectProduct:
		b.showProductDetail(ctx, cmd.productID, chatID, messageID)
	case commandPay:
		b.initiatePurchase(ctx, query.From.ID, cmd, chatID, messageID)
	default:
		b.logger.WithField("data", query.Data).Warn("unknown callback")
	}
}

func (b *Bot) showProducts(ctx context.Context, chatID int64, messageID int) {
	products, err := b.store.ListProducts(ctx)
	if err != nil {
		b.logger.WithError(err).Error("product listing failed")
		b.edit(chatID, messageID, "Something went wrong, please try again later.", backToMenuKeyboard())
		return
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(products)+1)
	for _, product := range products {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s - %s", product.Name, formatAmount(product.PriceCents, product.Currency)),
				fmt.Sprintf("product_%d", product.ID),
			),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Back to Menu 🔙", "start"),
	))

	b.edit(chatID, messageID, "Here are our available products:", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) showProductDetail(ctx context.Context, productID uint64, chatID int64, messageID int) {
	product, err := b.store.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			b.edit(chatID, messageID, "That product is no longer available.", backToMenuKeyboard())
			return
		}
		b.logger.WithError(err).Error("product lookup failed")
		b.edit(chatID, messageID, "Something went wrong, please try again later.", backToMenuKeyboard())
		return
	}

	text := fmt.Sprintf(
		"Product: %s\nPrice: %s\nDescription: %s\n\nChoose your payment method:",
		product.Name, formatAmount(product.PriceCents, product.Currency), product.Description,
	)
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Credit Card 💳", payCallbackData(entity.MethodCard, product.ID)),
			tgbotapi.NewInlineKeyboardButtonData("PayPal 📱", payCallbackData(entity.MethodPayPal, product.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Cryptocurrency 🪙", payCallbackData(entity.MethodCrypto, product.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Back to Products 🔙", "view_products"),
		),
	)
	b.edit(chatID, messageID, text, keyboard)
}

func (b *Bot) showOrders(ctx context.Context, userID int64, chatID int64, messageID int) {
	summaries, err := b.store.OrderHistory(ctx, userID)
	if err != nil {
		b.logger.WithError(err).Error("order history failed")
		b.edit(chatID, messageID, "Something went wrong, please try again later.", backToMenuKeyboard())
		return
	}

	if len(summaries) == 0 {
		b.edit(chatID, messageID, "You haven't placed any orders yet.", backToMenuKeyboard())
		return
	}

	var sb strings.Builder
	sb.WriteString("Your Orders:\n\n")
	for _, summary := range summaries {
		fmt.Fprintf(&sb, "Order #%d\n", summary.OrderID)
		fmt.Fprintf(&sb, "Product: %s\n", summary.ProductName)
		fmt.Fprintf(&sb, "Amount: %s\n", formatAmount(summary.AmountCents, summary.Currency))
		fmt.Fprintf(&sb, "Status: %s\n", summary.Status.String())
		fmt.Fprintf(&sb, "Date: %s\n\n", summary.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	b.edit(chatID, messageID, sb.String(), backToMenuKeyboard())
}

func (b *Bot) initiatePurchase(ctx context.Context, userID int64, cmd command, chatID int64, messageID int) {
	order, err := b.orders.InitiatePurchase(ctx, userID, cmd.productID, cmd.method)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProductNotFound):
			b.edit(chatID, messageID, "That product is no longer available.", backToMenuKeyboard())
		case errors.Is(err, service.ErrAmbiguousOutcome):
			b.edit(chatID, messageID,
				"We couldn't confirm your payment request. Please wait a moment before trying again - if you completed a payment, it will be honored.",
				backToMenuKeyboard())
		default:
			b.logger.WithError(err).WithField("method", cmd.method.String()).Error("purchase initiation failed")
			b.edit(chatID, messageID, "Sorry, there was an error processing your payment. Please try again later.", backToMenuKeyboard())
		}
		return
	}

	b.edit(chatID, messageID, fmt.Sprintf(
		"Please complete your payment using this link:\n%s\n\nAfter payment, you'll receive your digital product.",
		order.PayerURL,
	), backToMenuKeyboard())
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		b.logger.WithError(err).Error("send failed")
	}
}

func (b *Bot) edit(chatID int64, messageID int, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	msg.ReplyMarkup = &keyboard
	if _, err := b.api.Send(msg); err != nil {
		b.logger.WithError(err).Error("edit failed")
	}
}

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("View Products 🛍", "view_products"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("My Orders 📦", "my_orders"),
		),
	)
}

func backToMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Back to Menu 🔙", "start"),
		),
	)
}

// currencySymbols covers the currencies the store is commonly configured
// with. Anything else renders with its ISO code as a suffix.
var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

func formatAmount(cents int64, currency string) string {
	if symbol, ok := currencySymbols[strings.ToUpper(currency)]; ok {
		return fmt.Sprintf("%s%d.%02d", symbol, cents/100, cents%100)
	}
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, strings.ToUpper(currency))
}
