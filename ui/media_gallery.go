package ui

import (
	"fmt"
	"os"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"socialchat/models"
)

func (c *controller) buildMediaTab(chat models.Chat) fyne.CanvasObject {
	itemsBox := container.NewVBox()
	loading := widget.NewLabel("Loading media...")
	loading.Importance = widget.LowImportance
	itemsBox.Add(loading)

	var all []models.MediaItem
	activeFilter := ""

	render := func() {
		fyne.Do(func() {
			itemsBox.RemoveAll()
			shown := 0
			for _, item := range all {
				if activeFilter != "" && item.Type != activeFilter {
					continue
				}
				itemsBox.Add(c.renderMediaRow(item))
				shown++
			}
			if shown == 0 {
				empty := widget.NewLabel("No media in this chat")
				empty.Alignment = fyne.TextAlignCenter
				empty.Importance = widget.LowImportance
				itemsBox.Add(empty)
			}
			itemsBox.Refresh()
		})
	}

	filter := widget.NewSelect([]string{"All", "Images", "Videos", "Documents"}, func(choice string) {
		switch choice {
		case "Images":
			activeFilter = models.MediaTypeImage
		case "Videos":
			activeFilter = models.MediaTypeVideo
		case "Documents":
			activeFilter = models.MediaTypeDocument
		default:
			activeFilter = ""
		}
		render()
	})
	filter.SetSelected("All")

	go func() {
		items, err := c.service.FetchChatMedia(c.ctx, chat.ID)
		if err != nil {
			c.handleAPIError("Load media", err)
			return
		}
		all = items
		render()
	}()

	return container.NewBorder(
		container.NewVBox(filter, widget.NewSeparator()),
		nil, nil, nil,
		container.NewVScroll(itemsBox),
	)
}

func (c *controller) renderMediaRow(item models.MediaItem) fyne.CanvasObject {
	icon := theme.FileIcon()
	switch item.Type {
	case models.MediaTypeImage:
		icon = theme.FileImageIcon()
	case models.MediaTypeVideo:
		icon = theme.FileVideoIcon()
	}

	name := widget.NewLabel(valueOrDefault(item.Filename, item.ID))
	name.TextStyle = fyne.TextStyle{Bold: true}
	name.Truncation = fyne.TextTruncateEllipsis

	meta := widget.NewLabel(fmt.Sprintf("%s · %s", formatBytes(item.Size), formatTimestamp(item.CreatedAt)))
	meta.Importance = widget.LowImportance

	downloadBtn := widget.NewButtonWithIcon("", theme.DownloadIcon(), func() {
		go c.downloadMediaItem(item)
	})

	var trailing fyne.CanvasObject = downloadBtn
	if item.Type == models.MediaTypeVideo {
		streamBtn := widget.NewButtonWithIcon("", theme.MediaPlayIcon(), func() {
			url := c.service.StreamURL(valueOrDefault(item.Filename, item.ID))
			if url == "" {
				return
			}
			fyne.Do(func() {
				dialog.ShowInformation("Stream URL", url, c.window)
			})
		})
		trailing = container.NewHBox(streamBtn, downloadBtn)
	}

	row := container.NewBorder(nil, nil, widget.NewIcon(icon), trailing,
		container.NewVBox(name, meta))
	return container.NewVBox(row, widget.NewSeparator())
}

// downloadMediaItem saves a media item into the configured download
// directory.
func (c *controller) downloadMediaItem(item models.MediaItem) {
	data, err := c.service.DownloadMedia(c.ctx, item.ID)
	if err != nil {
		c.handleAPIError("Download media", err)
		return
	}

	dir := c.cfg.DownloadDir
	if dir == "" {
		dir = filepath.Join(c.dataDir, "downloads")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		c.setStatus(fmt.Sprintf("Download failed: %v", err))
		return
	}

	target := filepath.Join(dir, valueOrDefault(item.Filename, item.ID))
	if err := os.WriteFile(target, data, 0o600); err != nil {
		c.setStatus(fmt.Sprintf("Download failed: %v", err))
		return
	}
	c.setStatus("Saved " + target)
}
