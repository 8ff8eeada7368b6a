package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"socialchat/session"
)

func (c *controller) showUserSettingsDialog() {
	user, _, ok := c.session.Current()
	if !ok {
		return
	}

	username := widget.NewEntry()
	username.SetText(user.Username)
	email := widget.NewEntry()
	email.SetText(user.Email)
	status := widget.NewEntry()
	status.SetText(user.Status)
	status.SetPlaceHolder("What are you up to?")
	password := widget.NewPasswordEntry()
	password.SetPlaceHolder("New password (leave blank to keep)")

	pictureBtn := widget.NewButton("Change picture", func() {
		dialog.ShowFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil || rc == nil {
				return
			}
			go c.uploadProfilePicture(rc)
		}, c.window)
	})

	form := widget.NewForm(
		widget.NewFormItem("Username", username),
		widget.NewFormItem("Email", email),
		widget.NewFormItem("Status", status),
		widget.NewFormItem("Password", password),
		widget.NewFormItem("Picture", pictureBtn),
	)

	content := container.NewGridWrap(fyne.NewSize(420, 260), form)
	dialog.ShowCustomConfirm("Profile", "Save", "Cancel", content, func(confirm bool) {
		if !confirm {
			return
		}

		update := session.ProfileUpdate{
			Status:   status.Text,
			Password: password.Text,
		}
		if username.Text != user.Username {
			update.Username = username.Text
		}
		if email.Text != user.Email {
			update.Email = email.Text
		}

		go func() {
			updated, err := c.auth.UpdateProfile(c.ctx, update)
			if err != nil {
				c.handleAPIError("Update profile", err)
				return
			}
			c.setStatus("Profile saved for " + updated.DisplayName())
		}()
	}, c.window)
}

// uploadProfilePicture pushes a picked image to the server and refreshes
// the stored session user with the returned profile.
func (c *controller) uploadProfilePicture(rc fyne.URIReadCloser) {
	defer rc.Close()

	updated, err := c.service.UploadProfilePicture(c.ctx, rc.URI().Name(), rc)
	if err != nil {
		c.handleAPIError("Upload picture", err)
		return
	}

	_, token, ok := c.session.Current()
	if !ok {
		return
	}
	if updated.ID != "" {
		if err := c.session.Save(updated, token); err != nil {
			c.setStatus("Saved picture, but session update failed: " + err.Error())
			return
		}
	}
	c.setStatus("Profile picture updated")
}
