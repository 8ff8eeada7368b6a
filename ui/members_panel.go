package ui

import (
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"socialchat/models"
)

func (c *controller) buildMembersTab(chat models.Chat) fyne.CanvasObject {
	isManager := chat.HasManager(c.session.UserID())

	membersBox := container.NewVBox()
	resultsBox := container.NewVBox()
	resultsBox.Hide()

	var reload func()
	reload = func() {
		go func() {
			fresh, err := c.service.FetchChat(c.ctx, chat.ID)
			if err != nil {
				c.handleAPIError("Reload members", err)
				return
			}
			chat = *fresh
			c.chatList.Replace(*fresh)
			c.renderMembers(membersBox, *fresh, isManager, reload)
		}()
	}
	c.renderMembers(membersBox, chat, isManager, reload)

	items := []fyne.CanvasObject{
		widget.NewLabelWithStyle("Members", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		membersBox,
	}

	if chat.IsGroup && isManager {
		searchEntry := widget.NewEntry()
		searchEntry.SetPlaceHolder("Add member by username or email...")
		searchEntry.OnChanged = func(text string) {
			c.onMemberSearchInput(text, chat, resultsBox, reload)
		}
		items = append(items,
			widget.NewSeparator(),
			widget.NewLabelWithStyle("Add members", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
			searchEntry,
			resultsBox,
		)
	}

	return container.NewVScroll(container.NewVBox(items...))
}

func (c *controller) renderMembers(box *fyne.Container, chat models.Chat, isManager bool, reload func()) {
	selfID := c.session.UserID()

	type memberRow struct {
		id      string
		user    *models.User
		manager bool
	}
	rows := make([]memberRow, 0, len(chat.Members))
	for _, memberID := range chat.Members {
		rows = append(rows, memberRow{id: memberID, manager: chat.HasManager(memberID)})
	}

	go func() {
		for i := range rows {
			user, err := c.service.FetchUser(c.ctx, rows[i].id)
			if err == nil {
				rows[i].user = user
			}
		}

		fyne.Do(func() {
			box.RemoveAll()
			for _, row := range rows {
				name := row.id
				if row.user != nil {
					name = row.user.DisplayName()
				}
				if row.id == selfID {
					name += " (you)"
				}

				nameLabel := widget.NewLabel(name)
				nameLabel.Truncation = fyne.TextTruncateEllipsis
				if row.manager {
					nameLabel.TextStyle = fyne.TextStyle{Bold: true}
				}

				var trailing []fyne.CanvasObject
				if row.manager {
					badge := widget.NewLabel("manager")
					badge.Importance = widget.LowImportance
					trailing = append(trailing, badge)
				}

				if chat.IsGroup && isManager && row.id != selfID {
					memberID := row.id
					memberName := name
					if row.manager {
						demoteBtn := widget.NewButtonWithIcon("", theme.MoveDownIcon(), func() {
							c.confirmManagerChange(chat.ID, memberID, memberName, false, reload)
						})
						demoteBtn.Importance = widget.LowImportance
						trailing = append(trailing, demoteBtn)
					} else {
						promoteBtn := widget.NewButtonWithIcon("", theme.MoveUpIcon(), func() {
							c.confirmManagerChange(chat.ID, memberID, memberName, true, reload)
						})
						promoteBtn.Importance = widget.LowImportance
						trailing = append(trailing, promoteBtn)
					}

					removeBtn := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() {
						c.confirmMemberRemoval(chat.ID, memberID, memberName, reload)
					})
					removeBtn.Importance = widget.DangerImportance
					trailing = append(trailing, removeBtn)
				}

				box.Add(container.NewBorder(nil, nil, nil, container.NewHBox(trailing...), nameLabel))
			}
			box.Refresh()
		})
	}()
}

// memberCandidates filters directory search hits down to users who do not
// already belong to the chat.
func memberCandidates(users []models.User, chat models.Chat) []models.User {
	var candidates []models.User
	for _, user := range users {
		if !chat.HasMember(user.ID) {
			candidates = append(candidates, user)
		}
	}
	return candidates
}

// onMemberSearchInput debounces directory lookups while typing and filters
// out users who already belong to the chat.
func (c *controller) onMemberSearchInput(text string, chat models.Chat, resultsBox *fyne.Container, reload func()) {
	c.memberSearchMu.Lock()
	c.memberSearchSeq++
	seq := c.memberSearchSeq
	if c.memberSearchTimer != nil {
		c.memberSearchTimer.Stop()
	}
	c.memberSearchMu.Unlock()

	if strings.TrimSpace(text) == "" {
		fyne.Do(func() {
			resultsBox.RemoveAll()
			resultsBox.Hide()
		})
		return
	}

	debounce := c.cfg.MemberSearchDebounce
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}

	c.memberSearchMu.Lock()
	c.memberSearchTimer = time.AfterFunc(debounce, func() {
		users, err := c.service.SearchUsers(c.ctx, strings.TrimSpace(text))
		if err != nil {
			c.handleAPIError("Search users", err)
			return
		}

		c.memberSearchMu.Lock()
		stale := seq != c.memberSearchSeq
		c.memberSearchMu.Unlock()
		if stale {
			return
		}

		candidates := memberCandidates(users, chat)

		fyne.Do(func() {
			resultsBox.RemoveAll()
			if len(candidates) == 0 {
				empty := widget.NewLabel("No matching users")
				empty.Importance = widget.LowImportance
				resultsBox.Add(empty)
			}
			for _, user := range candidates {
				candidate := user
				nameLabel := widget.NewLabel(candidate.DisplayName())
				nameLabel.Truncation = fyne.TextTruncateEllipsis
				addBtn := widget.NewButtonWithIcon("", theme.ContentAddIcon(), func() {
					c.confirmMemberAddition(chat.ID, candidate, resultsBox, reload)
				})
				resultsBox.Add(container.NewBorder(nil, nil, nil, addBtn, nameLabel))
			}
			resultsBox.Show()
			resultsBox.Refresh()
		})
	})
	c.memberSearchMu.Unlock()
}

func (c *controller) confirmMemberAddition(chatID string, user models.User, resultsBox *fyne.Container, reload func()) {
	dialog.NewConfirm("Add Member", "Add "+user.DisplayName()+" to this chat?", func(confirm bool) {
		if !confirm {
			return
		}
		go func() {
			if _, err := c.service.AddMember(c.ctx, chatID, user.ID); err != nil {
				c.handleAPIError("Add member", err)
				return
			}
			c.setStatus("Added " + user.DisplayName())
			fyne.Do(func() {
				resultsBox.RemoveAll()
				resultsBox.Hide()
			})
			reload()
		}()
	}, c.window).Show()
}

func (c *controller) confirmMemberRemoval(chatID, userID, name string, reload func()) {
	dialog.NewConfirm("Remove Member", "Remove "+name+" from this chat?", func(confirm bool) {
		if !confirm {
			return
		}
		go func() {
			if _, err := c.service.RemoveMember(c.ctx, chatID, userID); err != nil {
				c.handleAPIError("Remove member", err)
				return
			}
			c.setStatus("Removed " + name)
			reload()
		}()
	}, c.window).Show()
}

func (c *controller) confirmManagerChange(chatID, userID, name string, promote bool, reload func()) {
	title, message := "Remove Manager", "Remove "+name+" as manager?"
	if promote {
		title, message = "Add Manager", "Make "+name+" a manager of this chat?"
	}
	dialog.NewConfirm(title, message, func(confirm bool) {
		if !confirm {
			return
		}
		go func() {
			var err error
			if promote {
				_, err = c.service.AddManager(c.ctx, chatID, userID)
			} else {
				_, err = c.service.RemoveManager(c.ctx, chatID, userID)
			}
			if err != nil {
				c.handleAPIError("Update manager", err)
				return
			}
			reload()
		}()
	}, c.window).Show()
}
