package main

import (
	"errors"

	"localshortcut/internal/hotkeys"
	"localshortcut/internal/shortcut"
)

func (a *App) requireManager() (*shortcut.Manager, error) {
	if a.manager == nil {
		return nil, errors.New("shortcut manager is unavailable")
	}
	return a.manager, nil
}

func (a *App) requireTable() (hotkeys.Table, error) {
	if a.table == nil {
		return nil, errors.New("accelerator table is unavailable")
	}
	return a.table, nil
}
