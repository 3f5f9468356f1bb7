package tester

import "time"

// LinkUp drives the Connection FSM's link_up transition (§4.4), called by
// the daemon when an "interface.state" bus event with state=="ifup" names
// this interface.
func (iface *Interface) LinkUp() {
	iface.queue.Enqueue(Event{Kind: EventLinkUp})
}

// LinkDown drives the Connection FSM's link_down transition, called for a
// "network.interface" event with action=="ifdown" naming this interface.
func (iface *Interface) LinkDown() {
	iface.queue.Enqueue(Event{Kind: EventLinkDown})
}

// handleLinkUp runs under dispatch's lock.
func (iface *Interface) handleLinkUp() {
	if iface.connectionState != ConnectionDisconnected {
		return
	}
	iface.connectionState = ConnectionSettling
	delay := time.Duration(iface.config.SettlingDelaySecs) * time.Second
	iface.settlingTimer.Start(delay)
}

// handleLinkDown runs under dispatch's lock.
func (iface *Interface) handleLinkDown() {
	switch iface.connectionState {
	case ConnectionConnected:
		iface.connectionState = ConnectionDisconnected
		iface.handleInterfaceDisconnected()
	case ConnectionSettling:
		// Tester was never started this cycle; suppress INTERFACE_DISCONNECTED
		// but still stop the settling timer (§4.4).
		iface.settlingTimer.Stop()
		iface.connectionState = ConnectionDisconnected
	case ConnectionDisconnected:
		// already down.
	}
}

// onSettlingDelayElapsed fires on the settling timer's own goroutine; route
// it through the queue so the Settling->Connected transition and the
// INTERFACE_SETTLED it triggers are serialised with everything else.
func (iface *Interface) onSettlingDelayElapsed() {
	iface.queue.Enqueue(Event{Kind: EventSettlingDelayElapsed})
}

// handleSettlingDelayElapsed runs under dispatch's lock. A stale firing
// (the timer popped just as a disconnect raced it) is recognised because
// connectionState will no longer be Settling, and is silently dropped.
func (iface *Interface) handleSettlingDelayElapsed() {
	if iface.connectionState != ConnectionSettling {
		return
	}
	iface.connectionState = ConnectionConnected
	iface.handleInterfaceSettled()
}
