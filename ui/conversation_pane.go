package ui

import (
	"errors"
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"socialchat/models"
	"socialchat/state"
)

type messageEntry struct {
	widget.Entry
	shiftDown bool
	onSend    func()
	onCancel  func()
}

func newMessageEntry(onSend, onCancel func()) *messageEntry {
	entry := &messageEntry{
		onSend:   onSend,
		onCancel: onCancel,
	}
	entry.MultiLine = true
	entry.ExtendBaseWidget(entry)
	return entry
}

func (e *messageEntry) KeyDown(key *fyne.KeyEvent) {
	e.Entry.KeyDown(key)
	if key == nil {
		return
	}
	if key.Name == desktop.KeyShiftLeft || key.Name == desktop.KeyShiftRight {
		e.shiftDown = true
	}
}

func (e *messageEntry) KeyUp(key *fyne.KeyEvent) {
	e.Entry.KeyUp(key)
	if key == nil {
		return
	}
	if key.Name == desktop.KeyShiftLeft || key.Name == desktop.KeyShiftRight {
		e.shiftDown = false
	}
}

func (e *messageEntry) TypedKey(key *fyne.KeyEvent) {
	if key == nil {
		return
	}
	switch key.Name {
	case fyne.KeyReturn, fyne.KeyEnter:
		if e.shiftDown {
			e.Entry.TypedKey(key)
			return
		}
		if e.onSend != nil {
			e.onSend()
		}
		return
	case fyne.KeyEscape:
		if e.onCancel != nil {
			e.onCancel()
		}
		return
	}
	e.Entry.TypedKey(key)
}

func (c *controller) buildConversationPane() fyne.CanvasObject {
	c.chatHeader = widget.NewLabel("Select a chat")
	c.chatHeader.TextStyle = fyne.TextStyle{Bold: true}
	c.chatSubtitle = widget.NewLabel("")
	c.chatSubtitle.Importance = widget.LowImportance

	c.detailsBtn = widget.NewButtonWithIcon("", theme.InfoIcon(), c.showChatDetailsDialog)
	c.detailsBtn.Hide()
	header := container.NewPadded(container.NewBorder(nil, nil, nil, c.detailsBtn,
		container.NewVBox(c.chatHeader, c.chatSubtitle)))

	emptyLabel := widget.NewLabel("No messages yet")
	emptyLabel.Alignment = fyne.TextAlignCenter
	emptyLabel.Importance = widget.LowImportance
	c.chatMessagesBox = container.NewVBox(emptyLabel)
	c.chatScroll = container.NewVScroll(c.chatMessagesBox)

	c.messageInput = newMessageEntry(c.submitComposer, c.cancelEditFromUI)
	c.messageInput.SetPlaceHolder("Type a message...")
	c.messageInput.Wrapping = fyne.TextWrapWord
	c.messageInput.SetMinRowsVisible(2)

	c.editBannerLabel = widget.NewLabel("")
	c.editBannerLabel.Importance = widget.WarningImportance
	c.editBannerLabel.Truncation = fyne.TextTruncateEllipsis
	cancelEditBtn := widget.NewButtonWithIcon("", theme.CancelIcon(), c.cancelEditFromUI)
	c.editBanner = container.NewBorder(nil, nil, nil, cancelEditBtn, c.editBannerLabel)
	c.editBanner.Hide()

	sendBtn := widget.NewButtonWithIcon("", theme.MailSendIcon(), c.submitComposer)
	sendBtn.Importance = widget.HighImportance
	inputPane := container.NewBorder(nil, nil, nil, container.NewPadded(sendBtn), c.messageInput)
	c.composer = container.NewVBox(c.editBanner, container.NewPadded(inputPane))
	c.composer.Hide()

	return container.NewBorder(
		container.NewVBox(header, widget.NewSeparator()),
		container.NewVBox(widget.NewSeparator(), c.composer),
		nil, nil, c.chatScroll,
	)
}

func (c *controller) openChat(chat models.Chat) {
	c.chatsMu.Lock()
	c.selected = chat.ID
	c.chatsMu.Unlock()

	fyne.Do(func() {
		c.chatHeader.SetText(chatTitle(chat))
		c.chatSubtitle.SetText(chatSubtitleText(chat))
		c.detailsBtn.Show()
		c.composer.Show()
		c.editBanner.Hide()
		c.messageInput.SetText("")
	})

	go func() {
		if err := c.conversation.Open(c.ctx, chat); err != nil {
			c.handleAPIError("Open chat", err)
			return
		}
		c.recoverJournaledEvents(chat.ID)
		if err := c.store.ReplaceMessages(chat.ID, c.conversation.Messages()); err != nil {
			c.setStatus(fmt.Sprintf("Cache messages failed: %v", err))
		}
		c.renderConversation()
	}()
}

// recoverJournaledEvents resurfaces optimistic sends journaled by a
// previous run that the server never confirmed.
func (c *controller) recoverJournaledEvents(chatID string) {
	events, err := c.store.PendingEvents(chatID)
	if err != nil || len(events) == 0 {
		return
	}

	restored := make([]state.PendingEvent, 0, len(events))
	for _, event := range events {
		restored = append(restored, state.PendingEvent{
			CorrelationID: event.CorrelationID,
			ChatID:        event.ChatID,
			Kind:          event.Kind,
			Message:       event.Message,
		})
	}
	c.conversation.RecoverPending(restored)
}

func chatSubtitleText(chat models.Chat) string {
	if !chat.IsGroup {
		return "Direct chat"
	}
	return fmt.Sprintf("%d members", len(chat.Members))
}

func (c *controller) submitComposer() {
	text := c.messageInput.Text
	if strings.TrimSpace(text) == "" {
		return
	}

	if _, editing := c.conversation.EditingMessage(); editing {
		go func() {
			if err := c.conversation.ConfirmEdit(c.ctx, text); err != nil {
				c.handleAPIError("Edit message", err)
				return
			}
			fyne.Do(func() {
				c.messageInput.SetText("")
				c.editBanner.Hide()
			})
			c.renderConversation()
			c.refreshChatListWidget()
		}()
		return
	}

	c.messageInput.SetText("")
	go func() {
		if _, err := c.conversation.Send(c.ctx, text); err != nil {
			if errors.Is(err, state.ErrEmptyMessage) {
				return
			}
			c.handleAPIError("Send message", err)
			return
		}
		c.renderConversation()
		c.refreshChatListWidget()
	}()
}

func (c *controller) cancelEditFromUI() {
	if _, editing := c.conversation.EditingMessage(); !editing {
		return
	}
	c.conversation.CancelEdit()
	fyne.Do(func() {
		c.messageInput.SetText("")
		c.editBanner.Hide()
	})
}

func (c *controller) startEditFromUI(msg models.Message) {
	if err := c.conversation.StartEdit(msg.ID); err != nil {
		c.setStatus(fmt.Sprintf("Edit failed: %v", err))
		return
	}
	fyne.Do(func() {
		c.editBannerLabel.SetText("Editing: " + truncatePreview(msg.Text, 60))
		c.editBanner.Show()
		c.messageInput.SetText(msg.Text)
		c.window.Canvas().Focus(c.messageInput)
	})
}

func (c *controller) deleteMessageFromUI(msg models.Message) {
	fyne.Do(func() {
		dialog.NewConfirm("Delete Message", "Delete this message for everyone?", func(confirm bool) {
			if !confirm {
				return
			}
			go func() {
				if err := c.conversation.Delete(c.ctx, msg.ID); err != nil {
					c.handleAPIError("Delete message", err)
					return
				}
				c.renderConversation()
				c.refreshChatListWidget()
			}()
		}, c.window).Show()
	})
}

func (c *controller) forwardMessageFromUI(msg models.Message) {
	if err := c.conversation.StartForward(msg.ID); err != nil {
		c.setStatus(fmt.Sprintf("Forward failed: %v", err))
		return
	}

	targets := c.conversation.ForwardTargets()
	if len(targets) == 0 {
		c.conversation.CancelForward()
		c.setStatus("No other chats to forward to")
		return
	}

	names := make([]string, len(targets))
	for i, chat := range targets {
		names[i] = chatTitle(chat)
	}

	fyne.Do(func() {
		picker := widget.NewSelect(names, nil)
		picker.PlaceHolder = "Choose a chat"
		content := container.NewVBox(
			widget.NewLabel("Forward \""+truncatePreview(msg.Text, 50)+"\" to:"),
			picker,
		)
		dlg := dialog.NewCustomConfirm("Forward Message", "Forward", "Cancel", content, func(confirm bool) {
			if !confirm || picker.SelectedIndex() < 0 {
				c.conversation.CancelForward()
				return
			}
			target := targets[picker.SelectedIndex()]
			go func() {
				if err := c.conversation.ConfirmForward(c.ctx, target.ID); err != nil {
					c.handleAPIError("Forward message", err)
					return
				}
				c.refreshChatListWidget()
				c.setStatus("Forwarded to " + chatTitle(target))
			}()
		}, c.window)
		dlg.Show()
	})
}

func (c *controller) renderConversation() {
	messages := c.conversation.Messages()
	selfID := c.session.UserID()

	fyne.Do(func() {
		if c.chatMessagesBox == nil {
			return
		}
		c.chatMessagesBox.RemoveAll()
		if len(messages) == 0 {
			empty := widget.NewLabel("No messages yet")
			empty.Alignment = fyne.TextAlignCenter
			empty.Importance = widget.LowImportance
			c.chatMessagesBox.Add(empty)
		} else {
			for _, msg := range messages {
				c.chatMessagesBox.Add(c.renderMessageRow(msg, selfID))
			}
		}
		c.chatMessagesBox.Refresh()
		if c.chatScroll != nil {
			c.chatScroll.ScrollToBottom()
		}
	})
}

func (c *controller) renderMessageRow(msg models.Message, selfID string) fyne.CanvasObject {
	own := msg.SenderID() == selfID

	body := widget.NewLabel(msg.DisplayText())
	body.Wrapping = fyne.TextWrapWord
	if msg.IsDeleted {
		body.TextStyle = fyne.TextStyle{Italic: true}
		body.Importance = widget.LowImportance
	}

	meta := formatTimestamp(msg.PreviewTime())
	if msg.Edited() && !msg.IsDeleted {
		meta += " · edited"
	}
	if msg.IsForwarded && !msg.IsDeleted {
		meta = "forwarded · " + meta
	}
	metaLabel := widget.NewLabel(meta)
	metaLabel.Importance = widget.LowImportance
	metaLabel.Alignment = fyne.TextAlignTrailing

	var actions []fyne.CanvasObject
	if !msg.IsDeleted {
		forwardBtn := widget.NewButtonWithIcon("", theme.MailForwardIcon(), func() {
			c.forwardMessageFromUI(msg)
		})
		forwardBtn.Importance = widget.LowImportance
		actions = append(actions, forwardBtn)
	}
	if own && !msg.IsDeleted {
		if !msg.IsForwarded {
			editBtn := widget.NewButtonWithIcon("", theme.DocumentCreateIcon(), func() {
				c.startEditFromUI(msg)
			})
			editBtn.Importance = widget.LowImportance
			actions = append(actions, editBtn)
		}
		deleteBtn := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() {
			c.deleteMessageFromUI(msg)
		})
		deleteBtn.Importance = widget.LowImportance
		actions = append(actions, deleteBtn)
	}

	bottom := fyne.CanvasObject(metaLabel)
	if len(actions) > 0 {
		bottom = container.NewBorder(nil, nil, container.NewHBox(actions...), nil, metaLabel)
	}

	bubble := container.NewVBox(body, bottom)
	card := widget.NewCard("", "", bubble)

	if own {
		return container.NewGridWithColumns(2, layout.NewSpacer(), card)
	}
	return container.NewGridWithColumns(2, card, layout.NewSpacer())
}
