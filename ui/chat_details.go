package ui

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"socialchat/api"
	"socialchat/models"
)

func (c *controller) showChatDetailsDialog() {
	c.chatsMu.RLock()
	chatID := c.selected
	c.chatsMu.RUnlock()
	if chatID == "" {
		return
	}

	go func() {
		chat, err := c.service.FetchChat(c.ctx, chatID)
		if err != nil {
			c.handleAPIError("Load chat details", err)
			return
		}

		fyne.Do(func() {
			tabs := container.NewAppTabs(
				container.NewTabItem("Settings", c.buildChatSettingsTab(*chat)),
				container.NewTabItem("Members", c.buildMembersTab(*chat)),
				container.NewTabItem("Media", c.buildMediaTab(*chat)),
			)
			content := container.NewGridWrap(fyne.NewSize(460, 480), tabs)
			dialog.ShowCustom(chatTitle(*chat), "Close", content, c.window)
		})
	}()
}

func (c *controller) buildChatSettingsTab(chat models.Chat) fyne.CanvasObject {
	isManager := chat.HasManager(c.session.UserID())

	description := widget.NewMultiLineEntry()
	description.SetText(chat.Description)
	description.Wrapping = fyne.TextWrapWord
	description.SetMinRowsVisible(3)
	if chat.IsGroup && !isManager {
		description.Disable()
	}

	saveDescBtn := widget.NewButton("Save description", func() {
		desc := description.Text
		go func() {
			updated, err := c.service.UpdateChat(c.ctx, chat.ID, api.ChatUpdate{Description: &desc})
			if err != nil {
				c.handleAPIError("Update description", err)
				return
			}
			c.chatList.Replace(*updated)
			c.refreshChatListWidget()
			c.setStatus("Description saved")
		}()
	})
	if chat.IsGroup && !isManager {
		saveDescBtn.Disable()
	}

	muteCheck := widget.NewCheck("Mute notifications", func(muted bool) {
		go func() {
			updated, err := c.service.UpdateChat(c.ctx, chat.ID, api.ChatUpdate{IsMuted: &muted})
			if err != nil {
				c.handleAPIError("Update mute", err)
				return
			}
			c.chatList.Replace(*updated)
		}()
	})
	muteCheck.SetChecked(chat.IsMuted)

	items := []fyne.CanvasObject{
		widget.NewLabelWithStyle("Description", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		description,
		saveDescBtn,
		widget.NewSeparator(),
		muteCheck,
	}

	if !chat.IsGroup {
		otherID := c.directChatPartnerID(chat)
		blockCheck := widget.NewCheck("Block this user", func(blocked bool) {
			go func() {
				if err := c.service.BlockUser(c.ctx, otherID, blocked); err != nil {
					c.handleAPIError("Block user", err)
					return
				}
				if blocked {
					c.setStatus("User blocked")
				} else {
					c.setStatus("User unblocked")
				}
			}()
		})
		blockCheck.SetChecked(chat.IsBlocked)
		if otherID == "" {
			blockCheck.Disable()
		}
		items = append(items, blockCheck)
	}

	items = append(items, widget.NewSeparator())

	if chat.IsGroup {
		leaveBtn := widget.NewButton("Leave chat", func() {
			dialog.NewConfirm("Leave Chat", "Leave this chat? You will need to be re-added to return.", func(confirm bool) {
				if !confirm {
					return
				}
				go func() {
					if err := c.service.LeaveChat(c.ctx, chat.ID); err != nil {
						c.handleAPIError("Leave chat", err)
						return
					}
					c.chatList.Remove(chat.ID)
					c.conversation.Close()
					c.refreshChatListWidget()
					c.setStatus("Left " + chatTitle(chat))
				}()
			}, c.window).Show()
		})
		leaveBtn.Importance = widget.DangerImportance
		items = append(items, leaveBtn)
	}

	if !chat.IsGroup || isManager {
		deleteBtn := widget.NewButton("Delete chat", func() {
			dialog.NewConfirm("Delete Chat", "Delete this chat for everyone? This cannot be undone.", func(confirm bool) {
				if !confirm {
					return
				}
				go func() {
					if err := c.service.DeleteChat(c.ctx, chat.ID); err != nil {
						c.handleAPIError("Delete chat", err)
						return
					}
					c.chatList.Remove(chat.ID)
					c.conversation.Close()
					c.refreshChatListWidget()
					c.setStatus("Deleted " + chatTitle(chat))
				}()
			}, c.window).Show()
		})
		deleteBtn.Importance = widget.DangerImportance
		items = append(items, deleteBtn)
	}

	info := widget.NewLabel(fmt.Sprintf("Created %s", formatTimestamp(chat.CreatedAt)))
	info.Importance = widget.LowImportance
	items = append(items, info)

	return container.NewVScroll(container.NewVBox(items...))
}

// directChatPartnerID returns the other participant of a one-to-one chat.
func (c *controller) directChatPartnerID(chat models.Chat) string {
	selfID := c.session.UserID()
	for _, memberID := range chat.Members {
		if memberID != selfID {
			return memberID
		}
	}
	return ""
}
