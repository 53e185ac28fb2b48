package nowplaying

// SelectTab shows tab, or goes back to the cover when tab is already shown.
func (s *Synchronizer) SelectTab(tab Tab) {
	s.update(func() {
		s.snap.ControlsVisible = true
		if s.snap.Tab == tab {
			s.snap.Tab = TabCover
		} else {
			s.snap.Tab = tab
		}

		s.updateLyricsIndex()
		s.startScrollTimer()
	})
}

// SetPresented shows or hides the now-playing surface.
func (s *Synchronizer) SetPresented(presented bool) {
	s.update(func() { s.setPresented(presented) })
}

// setPresented is SetPresented on the loop.
func (s *Synchronizer) setPresented(presented bool) {
	if presented {
		s.snap.DragOffset = 0
	}
	if s.snap.Tab != TabLyrics || presented {
		s.snap.ControlsVisible = true
	}
	s.snap.AddToPlaylistPresented = false
	s.snap.Presented = presented
}

// SetPosition records the dragged percentage and seeks the player to it.
func (s *Synchronizer) SetPosition(percentage float64) {
	s.update(func() { s.snap.DraggedPercentage = percentage })
	s.player.SetCurrentTime(s.player.Duration() * percentage)
}

// DidInteract reports a user interaction with the lyrics. It pauses
// auto-scroll, shows the controls and restarts the auto-hide timer.
func (s *Synchronizer) DidInteract() {
	s.loop.Post(func() {
		if s.snap.Tab == TabLyrics && !s.snap.ControlsDragging {
			s.snap.Scrolling = true
			s.snap.ControlsVisible = true
			s.changed()
		}
		s.startScrollTimer()
	})
}

// SetQueueTab selects the listed part of the queue.
func (s *Synchronizer) SetQueueTab(tab QueueTab) {
	s.update(func() { s.snap.QueueTab = tab })
}

// SetDragging records the start or end of a slider gesture.
func (s *Synchronizer) SetDragging(kind DragKind, dragging bool) {
	s.update(func() {
		switch kind {
		case DragSeek:
			s.snap.SeekDragging = dragging
		case DragVolume:
			s.snap.VolumeDragging = dragging
		case DragControls:
			s.snap.ControlsDragging = dragging
		}
	})
}

// SetDragOffset records how far the surface is dragged towards dismissal.
func (s *Synchronizer) SetDragOffset(offset float64) {
	s.update(func() { s.snap.DragOffset = offset })
}

// ToggleMediaInfo flips between the codec and the bit depth quality text.
func (s *Synchronizer) ToggleMediaInfo() {
	s.update(func() { s.snap.MediaInfoToggled = !s.snap.MediaInfoToggled })
}

// SetAddToPlaylistPresented opens or closes the add-to-playlist sheet.
func (s *Synchronizer) SetAddToPlaylistPresented(presented bool) {
	s.update(func() { s.snap.AddToPlaylistPresented = presented })
}
