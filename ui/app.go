// Package ui is the fyne desktop front end: login and sign-up, the chat
// list with federated search, the conversation view and the chat detail
// panels.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"socialchat/api"
	"socialchat/config"
	"socialchat/models"
	"socialchat/search"
	"socialchat/session"
	"socialchat/state"
	"socialchat/store"
)

// RunOptions configures the GUI runtime.
type RunOptions struct {
	Config     *config.ClientConfig
	ConfigPath string
	DataDir    string
	Session    *session.Session
	Auth       *session.Authenticator
	Service    *api.Service
	Store      *store.Store
}

type controller struct {
	app    fyne.App
	window fyne.Window

	cfg     *config.ClientConfig
	cfgPath string
	dataDir string

	session *session.Session
	auth    *session.Authenticator
	service *api.Service
	store   *store.Store

	chatList     *state.ChatList
	conversation *state.Conversation
	searcher     *search.Searcher

	ctx    context.Context
	cancel context.CancelFunc

	content *fyne.Container

	chatsMu  sync.RWMutex
	uiChats  []models.Chat
	selected string

	searchMu    sync.Mutex
	searchTimer *time.Timer
	searchSeq   int

	memberSearchMu    sync.Mutex
	memberSearchTimer *time.Timer
	memberSearchSeq   int

	chatListWidget   *widget.List
	searchEntry      *widget.Entry
	searchResultsBox *fyne.Container

	chatHeader      *widget.Label
	chatSubtitle    *widget.Label
	chatMessagesBox *fyne.Container
	chatScroll      *container.Scroll
	messageInput    *messageEntry
	editBanner      *fyne.Container
	editBannerLabel *widget.Label
	composer        *fyne.Container
	detailsBtn      *widget.Button

	statusLabel *widget.Label
}

// Run starts the GUI.
func Run(options RunOptions) error {
	if err := options.validate(); err != nil {
		return err
	}

	ui := fyneapp.NewWithID("socialchat")
	ctrl, err := newController(ui, options)
	if err != nil {
		return err
	}
	return ctrl.run()
}

func (o RunOptions) validate() error {
	if o.Config == nil {
		return errors.New("config is required")
	}
	if o.Session == nil {
		return errors.New("session is required")
	}
	if o.Auth == nil {
		return errors.New("authenticator is required")
	}
	if o.Service == nil {
		return errors.New("api service is required")
	}
	if o.Store == nil {
		return errors.New("store is required")
	}
	return nil
}

func newController(app fyne.App, options RunOptions) (*controller, error) {
	ctx, cancel := context.WithCancel(context.Background())

	ctrl := &controller{
		app:     app,
		window:  app.NewWindow("SocialChat"),
		cfg:     options.Config,
		cfgPath: options.ConfigPath,
		dataDir: options.DataDir,
		session: options.Session,
		auth:    options.Auth,
		service: options.Service,
		store:   options.Store,
		ctx:     ctx,
		cancel:  cancel,
	}

	ctrl.chatList = state.NewChatList(options.Service)
	ctrl.conversation = state.NewConversation(options.Service, ctrl.chatList, options.Store, ctrl.session.UserID)

	searcher, err := search.New(ctrl.chatList, options.Service, search.Options{
		ResultCacheSize:  options.Config.SearchResultCacheSize,
		MessageCacheSize: options.Config.ChatMessagesCacheSize,
		SenderCacheSize:  options.Config.SenderCacheSize,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create searcher: %w", err)
	}
	ctrl.searcher = searcher
	ctrl.chatList.SetOnChange(searcher.InvalidateChats)

	ctrl.window.Resize(fyne.NewSize(1100, 720))
	ctrl.content = container.NewStack()
	ctrl.window.SetContent(ctrl.content)

	if _, _, ok := ctrl.session.Current(); ok {
		ctrl.showMainView()
	} else {
		ctrl.showLoginView()
	}

	return ctrl, nil
}

func (c *controller) run() error {
	c.window.SetOnClosed(func() {
		c.cancel()
	})
	c.window.ShowAndRun()
	return nil
}

func (c *controller) setStatus(text string) {
	fyne.Do(func() {
		if c.statusLabel != nil {
			c.statusLabel.SetText(text)
		}
	})
	if text != "" {
		log.Printf("status: %s", text)
	}
}

// handleAPIError routes failures to the status bar. A rejected token drops
// the in-memory session and returns the user to the login view.
func (c *controller) handleAPIError(action string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, api.ErrUnauthorized) {
		log.Printf("%s: session rejected: %v", action, err)
		c.session.LogOut()
		c.searcher.InvalidateUser()
		c.chatList.Clear()
		c.conversation.Close()
		fyne.Do(func() {
			c.showLoginView()
		})
		return
	}
	c.setStatus(fmt.Sprintf("%s failed: %v", action, err))
}

// showMainView swaps in the chat layout and starts the initial loads.
func (c *controller) showMainView() {
	sidebar := c.buildChatListPane()
	conversation := c.buildConversationPane()

	c.statusLabel = widget.NewLabel("")
	c.statusLabel.Truncation = fyne.TextTruncateEllipsis

	split := container.NewHSplit(sidebar, conversation)
	split.SetOffset(0.3)

	main := container.NewBorder(nil, c.statusLabel, nil, nil, split)
	c.content.RemoveAll()
	c.content.Add(main)
	c.content.Refresh()

	go c.loadInitialChats()
}

// loadInitialChats renders the offline snapshot immediately, then replaces
// it with the server's list.
func (c *controller) loadInitialChats() {
	if cached, err := c.store.Chats(); err == nil && len(cached) > 0 {
		c.chatList.Prime(cached)
		c.refreshChatListWidget()
	}

	if err := c.chatList.Load(c.ctx); err != nil {
		c.handleAPIError("Load chats", err)
		return
	}
	c.refreshChatListWidget()

	if err := c.store.ReplaceChats(c.chatList.Chats()); err != nil {
		log.Printf("cache chats: %v", err)
	}
}

func (c *controller) logOutToLogin(full bool) {
	if full {
		if err := c.session.Save(nil, ""); err != nil {
			log.Printf("clear session: %v", err)
		}
		if err := c.store.ClearUserData(); err != nil {
			log.Printf("clear cache: %v", err)
		}
	} else {
		c.session.LogOut()
	}
	c.searcher.InvalidateUser()
	c.chatList.Clear()
	c.conversation.Close()
	fyne.Do(func() {
		c.showLoginView()
	})
}
