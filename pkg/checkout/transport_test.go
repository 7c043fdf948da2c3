package checkout

import (
	"testing"
)

func TestPipeDeliversToPeer(t *testing.T) {
	host, frame := NewPipe()

	var got []Message
	host.Subscribe(func(m Message) { got = append(got, m) })

	frame.Send(Message{Type: MessagePaymentSuccess, Token: "tok"})
	frame.Send(Message{Type: MessageCloseModal, Token: "tok"})

	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Type != MessagePaymentSuccess || got[1].Type != MessageCloseModal {
		t.Errorf("messages delivered out of order: %v, %v", got[0].Type, got[1].Type)
	}
}

func TestPipeDoesNotEchoToSender(t *testing.T) {
	host, frame := NewPipe()

	hostGot := 0
	frameGot := 0
	host.Subscribe(func(Message) { hostGot++ })
	frame.Subscribe(func(Message) { frameGot++ })

	host.Send(Message{Type: MessageCloseModal})

	if hostGot != 0 {
		t.Error("sender must not receive its own message")
	}
	if frameGot != 1 {
		t.Errorf("peer should receive exactly one message, got %d", frameGot)
	}
}

func TestPipeCancelStopsDelivery(t *testing.T) {
	host, frame := NewPipe()

	got := 0
	cancel := host.Subscribe(func(Message) { got++ })

	frame.Send(Message{Type: MessagePaymentFailed})
	cancel()
	frame.Send(Message{Type: MessagePaymentFailed})

	if got != 1 {
		t.Errorf("expected 1 message before cancel, got %d", got)
	}

	// Cancelling twice is a no-op.
	cancel()
}

func TestPipeCancelOnlyRemovesOwnSubscription(t *testing.T) {
	host, frame := NewPipe()

	aGot, bGot := 0, 0
	cancelA := host.Subscribe(func(Message) { aGot++ })
	host.Subscribe(func(Message) { bGot++ })

	cancelA()
	frame.Send(Message{Type: MessagePaymentSuccess})

	if aGot != 0 {
		t.Error("cancelled subscription still received a message")
	}
	if bGot != 1 {
		t.Errorf("surviving subscription should receive the message, got %d", bGot)
	}
}

func TestPipeHandlerMayCancelDuringDispatch(t *testing.T) {
	host, frame := NewPipe()

	var cancel func()
	got := 0
	cancel = host.Subscribe(func(Message) {
		got++
		cancel()
	})

	frame.Send(Message{Type: MessageCloseModal})
	frame.Send(Message{Type: MessageCloseModal})

	if got != 1 {
		t.Errorf("handler that cancels itself should run once, got %d", got)
	}
}
