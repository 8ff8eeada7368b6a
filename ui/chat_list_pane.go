package ui

import (
	"fmt"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"socialchat/models"
	"socialchat/search"
)

func (c *controller) buildChatListPane() fyne.CanvasObject {
	c.searchEntry = widget.NewEntry()
	c.searchEntry.SetPlaceHolder("Search chats and messages...")
	c.searchEntry.OnChanged = c.onSearchInput

	c.searchResultsBox = container.NewVBox()
	c.searchResultsBox.Hide()
	searchScroll := container.NewVScroll(c.searchResultsBox)

	c.chatListWidget = widget.NewList(
		func() int {
			c.chatsMu.RLock()
			defer c.chatsMu.RUnlock()
			return len(c.uiChats)
		},
		func() fyne.CanvasObject {
			name := widget.NewLabel("chat")
			name.TextStyle = fyne.TextStyle{Bold: true}
			name.Truncation = fyne.TextTruncateEllipsis
			preview := widget.NewLabel("preview")
			preview.Importance = widget.LowImportance
			preview.Truncation = fyne.TextTruncateEllipsis
			ts := widget.NewLabel("")
			ts.Importance = widget.LowImportance
			ts.Alignment = fyne.TextAlignTrailing
			return container.NewBorder(nil, nil, nil, ts, container.NewVBox(name, preview))
		},
		func(id widget.ListItemID, item fyne.CanvasObject) {
			c.chatsMu.RLock()
			if id >= len(c.uiChats) {
				c.chatsMu.RUnlock()
				return
			}
			chat := c.uiChats[id]
			c.chatsMu.RUnlock()

			border := item.(*fyne.Container)
			ts := border.Objects[1].(*widget.Label)
			text := border.Objects[0].(*fyne.Container)
			name := text.Objects[0].(*widget.Label)
			preview := text.Objects[1].(*widget.Label)

			name.SetText(chatTitle(chat))
			preview.SetText(chatPreviewLine(chat))
			ts.SetText(formatTimestamp(chat.PreviewTimestamp()))
		},
	)
	c.chatListWidget.OnSelected = func(id widget.ListItemID) {
		c.chatsMu.RLock()
		if id >= len(c.uiChats) {
			c.chatsMu.RUnlock()
			return
		}
		chat := c.uiChats[id]
		c.chatsMu.RUnlock()
		c.openChat(chat)
	}

	settingsBtn := widget.NewButtonWithIcon("", theme.AccountIcon(), c.showUserSettingsDialog)
	logoutBtn := widget.NewButtonWithIcon("", theme.LogoutIcon(), func() {
		go c.logOutToLogin(true)
	})
	header := container.NewBorder(nil, nil, nil, container.NewHBox(settingsBtn, logoutBtn), c.searchEntry)

	body := container.NewStack(c.chatListWidget, searchScroll)
	return container.NewBorder(container.NewVBox(header, widget.NewSeparator()), nil, nil, nil, body)
}

func chatTitle(chat models.Chat) string {
	return valueOrDefault(chat.Name, chat.ID)
}

func chatPreviewLine(chat models.Chat) string {
	if chat.LastMessage == nil {
		return "No messages yet"
	}
	if chat.LastMessage.IsDeleted {
		return models.DeletedPlaceholder
	}
	return truncatePreview(chat.LastMessage.Text, 60)
}

func (c *controller) refreshChatListWidget() {
	chats := c.chatList.Chats()

	c.chatsMu.Lock()
	c.uiChats = chats
	c.chatsMu.Unlock()

	fyne.Do(func() {
		if c.chatListWidget != nil {
			c.chatListWidget.Refresh()
		}
	})
}

// onSearchInput debounces keystrokes before running a query. Only the
// newest pending query ever runs, and stale results are dropped.
func (c *controller) onSearchInput(text string) {
	c.searchMu.Lock()
	c.searchSeq++
	seq := c.searchSeq
	if c.searchTimer != nil {
		c.searchTimer.Stop()
	}
	c.searchMu.Unlock()

	if strings.TrimSpace(text) == "" {
		c.showSearchResults(seq, nil, false)
		return
	}

	debounce := c.cfg.SearchDebounce
	if debounce <= 0 {
		debounce = 150 * time.Millisecond
	}

	c.searchMu.Lock()
	c.searchTimer = time.AfterFunc(debounce, func() {
		results, err := c.searcher.Search(c.ctx, text)
		if err != nil {
			c.handleAPIError("Search", err)
			return
		}
		c.showSearchResults(seq, results, true)
	})
	c.searchMu.Unlock()
}

// showSearchResults renders a result set unless a newer query superseded it.
func (c *controller) showSearchResults(seq int, results []search.Result, active bool) {
	c.searchMu.Lock()
	stale := seq != c.searchSeq
	c.searchMu.Unlock()
	if stale {
		return
	}

	fyne.Do(func() {
		if c.searchResultsBox == nil {
			return
		}
		c.searchResultsBox.RemoveAll()
		if !active {
			c.searchResultsBox.Hide()
			c.chatListWidget.Show()
			return
		}

		if len(results) == 0 {
			empty := widget.NewLabel("No results")
			empty.Alignment = fyne.TextAlignCenter
			empty.Importance = widget.LowImportance
			c.searchResultsBox.Add(empty)
		}
		for _, result := range results {
			c.searchResultsBox.Add(c.renderSearchResult(result))
		}
		c.chatListWidget.Hide()
		c.searchResultsBox.Show()
		c.searchResultsBox.Refresh()
	})
}

func (c *controller) renderSearchResult(result search.Result) fyne.CanvasObject {
	var title, subtitle string
	switch result.Kind {
	case search.KindChat:
		title = result.ChatName
		subtitle = "Chat"
	default:
		title = fmt.Sprintf("%s in %s", result.SenderName, result.ChatName)
		subtitle = truncatePreview(result.Message.Text, 80)
	}

	titleLabel := widget.NewLabel(title)
	titleLabel.TextStyle = fyne.TextStyle{Bold: true}
	titleLabel.Truncation = fyne.TextTruncateEllipsis
	subtitleLabel := widget.NewLabel(subtitle)
	subtitleLabel.Importance = widget.LowImportance
	subtitleLabel.Truncation = fyne.TextTruncateEllipsis

	chat := result.Chat
	open := widget.NewButtonWithIcon("", theme.NavigateNextIcon(), func() {
		c.clearSearch()
		c.openChat(chat)
	})

	return container.NewBorder(nil, widget.NewSeparator(), nil, open,
		container.NewVBox(titleLabel, subtitleLabel))
}

func (c *controller) clearSearch() {
	c.searchMu.Lock()
	c.searchSeq++
	seq := c.searchSeq
	if c.searchTimer != nil {
		c.searchTimer.Stop()
	}
	c.searchMu.Unlock()

	fyne.Do(func() {
		if c.searchEntry != nil {
			c.searchEntry.SetText("")
		}
	})
	c.showSearchResults(seq, nil, false)
}
