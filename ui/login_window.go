package ui

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"socialchat/session"
)

func (c *controller) showLoginView() {
	identifier := widget.NewEntry()
	identifier.SetPlaceHolder("Username or email")
	password := widget.NewPasswordEntry()
	password.SetPlaceHolder("Password")

	errorLabel := widget.NewLabel("")
	errorLabel.Importance = widget.DangerImportance
	errorLabel.Wrapping = fyne.TextWrapWord
	errorLabel.Hide()

	showError := func(text string) {
		fyne.Do(func() {
			errorLabel.SetText(text)
			errorLabel.Show()
		})
	}

	var loginBtn *widget.Button
	doLogin := func() {
		id := identifier.Text
		pw := password.Text
		if id == "" || pw == "" {
			showError("Enter your username or email and password")
			return
		}

		fyne.Do(func() {
			loginBtn.Disable()
			errorLabel.Hide()
		})
		go func() {
			defer fyne.Do(loginBtn.Enable)

			if _, err := c.auth.Login(c.ctx, id, pw); err != nil {
				showError(fmt.Sprintf("Login failed: %v", err))
				return
			}
			c.searcher.InvalidateUser()
			fyne.Do(func() {
				c.showMainView()
			})
		}()
	}

	loginBtn = widget.NewButton("Log In", doLogin)
	loginBtn.Importance = widget.HighImportance
	password.OnSubmitted = func(string) { doLogin() }

	signUpBtn := widget.NewButton("Create an account", func() {
		c.showSignUpView()
	})
	signUpBtn.Importance = widget.LowImportance

	title := widget.NewLabelWithStyle("SocialChat", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	form := container.NewVBox(
		title,
		widget.NewSeparator(),
		identifier,
		password,
		errorLabel,
		loginBtn,
		signUpBtn,
	)

	c.content.RemoveAll()
	c.content.Add(container.NewCenter(container.NewGridWrap(fyne.NewSize(360, 320), form)))
	c.content.Refresh()
	c.window.Canvas().Focus(identifier)
}

func (c *controller) showSignUpView() {
	username := widget.NewEntry()
	username.SetPlaceHolder("Username")
	email := widget.NewEntry()
	email.SetPlaceHolder("Email")
	password := widget.NewPasswordEntry()
	password.SetPlaceHolder("Password")
	verify := widget.NewPasswordEntry()
	verify.SetPlaceHolder("Repeat password")

	var profilePic string
	picLabel := widget.NewLabel("No picture selected")
	picBtn := widget.NewButton("Choose picture", func() {
		dialog.ShowFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil || rc == nil {
				return
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				picLabel.SetText("Could not read picture")
				return
			}
			profilePic = "data:" + rc.URI().MimeType() + ";base64," +
				base64.StdEncoding.EncodeToString(data)
			picLabel.SetText(rc.URI().Name())
		}, c.window)
	})

	errorLabel := widget.NewLabel("")
	errorLabel.Importance = widget.DangerImportance
	errorLabel.Wrapping = fyne.TextWrapWord
	errorLabel.Hide()

	var submitBtn *widget.Button
	doSignUp := func() {
		fyne.Do(func() {
			submitBtn.Disable()
			errorLabel.Hide()
		})
		go func() {
			defer fyne.Do(submitBtn.Enable)

			err := c.auth.SignUp(c.ctx, session.SignUpRequest{
				Username:       username.Text,
				Email:          email.Text,
				Password:       password.Text,
				VerifyPassword: verify.Text,
				ProfilePic:     profilePic,
			})
			if err != nil {
				text := fmt.Sprintf("Sign up failed: %v", err)
				if errors.Is(err, session.ErrPasswordMismatch) {
					text = "Passwords do not match"
				}
				fyne.Do(func() {
					errorLabel.SetText(text)
					errorLabel.Show()
				})
				return
			}
			fyne.Do(func() {
				dialog.ShowInformation("Account created", "You can log in now.", c.window)
				c.showLoginView()
			})
		}()
	}

	submitBtn = widget.NewButton("Sign Up", doSignUp)
	submitBtn.Importance = widget.HighImportance

	backBtn := widget.NewButton("Back to login", func() {
		c.showLoginView()
	})
	backBtn.Importance = widget.LowImportance

	title := widget.NewLabelWithStyle("Create your account", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	form := container.NewVBox(
		title,
		widget.NewSeparator(),
		username,
		email,
		password,
		verify,
		container.NewBorder(nil, nil, picBtn, nil, picLabel),
		errorLabel,
		submitBtn,
		backBtn,
	)

	c.content.RemoveAll()
	c.content.Add(container.NewCenter(container.NewGridWrap(fyne.NewSize(360, 400), form)))
	c.content.Refresh()
	c.window.Canvas().Focus(username)
}
