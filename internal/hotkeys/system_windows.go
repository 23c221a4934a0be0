//go:build windows

package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"localshortcut/internal/accelerator"
)

var (
	user32DLL = windows.NewLazySystemDLL("user32.dll")

	procRegisterHotKey     = user32DLL.NewProc("RegisterHotKey")
	procUnregisterHotKey   = user32DLL.NewProc("UnregisterHotKey")
	procGetMessageW        = user32DLL.NewProc("GetMessageW")
	procPostThreadMessageW = user32DLL.NewProc("PostThreadMessageW")
	procPeekMessageW       = user32DLL.NewProc("PeekMessageW")
)

const (
	wmHotkey   = 0x0312
	wmQuit     = 0x0012
	wmApp      = 0x8000
	wmRequest  = wmApp + 1
	pmNoRemove = 0x0000

	// Application-defined hotkey IDs must stay within 0x0000..0xBFFF.
	firstHotkeyID int32 = 0x4000
	maxHotkeyID   int32 = 0xBFFF

	stopTimeout = 2 * time.Second
)

type point struct {
	x int32
	y int32
}

// winMsg mirrors the Win32 MSG struct; the layout must match winuser.h.
type winMsg struct {
	hWnd     uintptr
	message  uint32
	wParam   uintptr
	lParam   uintptr
	time     uint32
	pt       point
	lPrivate uint32
}

type loopRequest struct {
	register  bool
	id        int32
	modifiers uint32
	vk        uint32
	reply     chan error
}

type systemBinding struct {
	id int32
	fn func()
}

// SystemTable binds accelerators as Win32 global hotkeys. All
// RegisterHotKey calls run on one OS thread that owns the message queue,
// because thread-level hotkeys are delivered to the registering thread.
type SystemTable struct {
	// callMu serializes requests to the loop thread. Never held by the loop.
	callMu sync.Mutex

	// bindMu guards bindings and byID. The loop takes it briefly on WM_HOTKEY.
	bindMu   sync.RWMutex
	bindings map[string]*systemBinding
	byID     map[int32]string

	nextID   int32
	threadID uint32
	requests chan loopRequest
	doneCh   chan struct{}
	closed   bool
}

type loopReady struct {
	threadID uint32
	err      error
}

// NewSystemTable starts the hotkey message loop and returns a Table backed
// by Win32 global hotkeys.
func NewSystemTable() (Table, error) {
	if err := user32DLL.Load(); err != nil {
		return nil, fmt.Errorf("user32.dll is unavailable: %w", err)
	}
	t := &SystemTable{
		bindings: map[string]*systemBinding{},
		byID:     map[int32]string{},
		nextID:   firstHotkeyID,
		requests: make(chan loopRequest),
		doneCh:   make(chan struct{}),
	}
	readyCh := make(chan loopReady, 1)
	go t.run(readyCh)
	ready := <-readyCh
	if ready.err != nil {
		return nil, fmt.Errorf("start hotkey loop: %w", ready.err)
	}
	t.threadID = ready.threadID
	return t, nil
}

// Register binds accel as a global hotkey. Rebinding an accelerator that is
// already registered only swaps the callback; the OS registration is kept.
func (t *SystemTable) Register(accel string, fn func()) error {
	if fn == nil {
		return ErrNilCallback
	}
	acc, err := accelerator.Parse(accel)
	if err != nil {
		return err
	}
	mods, vk, err := win32Binding(acc)
	if err != nil {
		return err
	}
	key := acc.String()

	t.callMu.Lock()
	defer t.callMu.Unlock()
	if t.closed {
		return errors.New("hotkey table is closed")
	}

	t.bindMu.Lock()
	if existing, ok := t.bindings[key]; ok {
		existing.fn = fn
		t.bindMu.Unlock()
		slog.Debug("[hotkey] binding replaced", "accelerator", key)
		return nil
	}
	t.bindMu.Unlock()

	if t.nextID > maxHotkeyID {
		return fmt.Errorf("hotkey ID range exhausted (ID=%d)", t.nextID)
	}
	id := t.nextID
	t.nextID++

	if err := t.send(loopRequest{register: true, id: id, modifiers: mods, vk: vk}); err != nil {
		return fmt.Errorf("register hotkey %q failed: %w", key, err)
	}

	t.bindMu.Lock()
	t.bindings[key] = &systemBinding{id: id, fn: fn}
	t.byID[id] = key
	t.bindMu.Unlock()
	return nil
}

// Unregister releases the global hotkey bound to accel.
func (t *SystemTable) Unregister(accel string) error {
	key, err := normalizedKey(accel)
	if err != nil {
		return err
	}

	t.callMu.Lock()
	defer t.callMu.Unlock()

	t.bindMu.Lock()
	binding, ok := t.bindings[key]
	if ok {
		delete(t.bindings, key)
		delete(t.byID, binding.id)
	}
	t.bindMu.Unlock()
	if !ok || t.closed {
		return nil
	}

	if err := t.send(loopRequest{id: binding.id}); err != nil {
		return fmt.Errorf("unregister hotkey %q failed: %w", key, err)
	}
	return nil
}

// IsRegistered reports whether accel is bound.
func (t *SystemTable) IsRegistered(accel string) bool {
	key := accelerator.Normalize(accel)
	t.bindMu.RLock()
	_, ok := t.bindings[key]
	t.bindMu.RUnlock()
	return ok
}

// Dispatch runs the callback bound to accel on the caller's goroutine.
func (t *SystemTable) Dispatch(accel string) bool {
	key := accelerator.Normalize(accel)
	t.bindMu.RLock()
	binding, ok := t.bindings[key]
	var fn func()
	if ok {
		fn = binding.fn
	}
	t.bindMu.RUnlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// Close stops the message loop. Hotkeys registered by the loop thread are
// released by the loop on exit.
func (t *SystemTable) Close() error {
	t.callMu.Lock()
	defer t.callMu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	stopErr := postThreadMessage(t.threadID, wmQuit)

	timer := time.NewTimer(stopTimeout)
	defer timer.Stop()
	select {
	case <-t.doneCh:
	case <-timer.C:
		slog.Warn("[hotkey] message loop stop timed out, goroutine/thread may leak", "threadID", t.threadID)
		stopErr = errors.Join(stopErr, fmt.Errorf("hotkey message loop stop timed out (threadID=%d)", t.threadID))
	}
	return stopErr
}

// send hands req to the loop thread and waits for its result.
// Caller must hold callMu.
func (t *SystemTable) send(req loopRequest) error {
	req.reply = make(chan error, 1)
	if err := postThreadMessage(t.threadID, wmRequest); err != nil {
		return err
	}
	select {
	case t.requests <- req:
	case <-t.doneCh:
		return errors.New("hotkey message loop exited")
	}
	return <-req.reply
}

func (t *SystemTable) run(readyCh chan<- loopReady) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(t.doneCh)

	threadID := windows.GetCurrentThreadId()
	if threadID == 0 {
		readyCh <- loopReady{err: errors.New("GetCurrentThreadId returned 0")}
		return
	}

	// PeekMessageW creates the thread message queue so PostThreadMessageW
	// can reach it before the first GetMessageW call.
	var qmsg winMsg
	procPeekMessageW.Call(uintptr(unsafe.Pointer(&qmsg)), 0, 0, 0, pmNoRemove)

	registered := map[int32]struct{}{}
	defer func() {
		for id := range registered {
			if err := unregisterHotKey(id); err != nil {
				slog.Warn("[hotkey] unregisterHotKey on loop exit failed", "error", err, "hotkeyID", id)
			}
		}
	}()

	readyCh <- loopReady{threadID: threadID}

	for {
		var msg winMsg
		ret, _, lastErr := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		switch int32(ret) {
		case -1:
			slog.Warn("[hotkey] GetMessageW returned error, exiting loop", "error", lastErr)
			return
		case 0:
			slog.Debug("[hotkey] message loop received WM_QUIT")
			return
		}

		switch msg.message {
		case wmRequest:
			req := <-t.requests
			var err error
			if req.register {
				err = registerHotKey(req.id, req.modifiers, req.vk)
				if err == nil {
					registered[req.id] = struct{}{}
				}
			} else {
				err = unregisterHotKey(req.id)
				delete(registered, req.id)
			}
			req.reply <- err
		case wmHotkey:
			id := int32(msg.wParam)
			t.bindMu.RLock()
			var fn func()
			if key, ok := t.byID[id]; ok {
				fn = t.bindings[key].fn
			}
			t.bindMu.RUnlock()
			if fn != nil {
				go fn()
			}
		}
	}
}

func registerHotKey(id int32, modifiers uint32, vk uint32) error {
	res, _, err := procRegisterHotKey.Call(0, uintptr(id), uintptr(modifiers), uintptr(vk))
	if res != 0 {
		return nil
	}
	if err == windows.Errno(0) {
		return errors.New("RegisterHotKey failed")
	}
	return err
}

func unregisterHotKey(id int32) error {
	res, _, err := procUnregisterHotKey.Call(0, uintptr(id))
	if res != 0 {
		return nil
	}
	if err == windows.Errno(0) {
		return errors.New("UnregisterHotKey failed")
	}
	return err
}

func postThreadMessage(threadID uint32, message uint32) error {
	if threadID == 0 {
		return errors.New("cannot post message: threadID is 0")
	}
	res, _, err := procPostThreadMessageW.Call(uintptr(threadID), uintptr(message), 0, 0)
	if res != 0 {
		return nil
	}
	if err == windows.Errno(0) {
		return errors.New("PostThreadMessageW failed")
	}
	return err
}
