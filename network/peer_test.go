package network

import (
	"net"
	"testing"
)

func TestConnSendReceiveRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	serverErrs := make(chan error, 1)
	serverMsgs := make(chan Message, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverErrs <- err
			return
		}
		c := NewConn(conn)
		defer c.Close()
		msg, err := c.Receive()
		if err != nil {
			serverErrs <- err
			return
		}
		serverMsgs <- msg
		serverErrs <- nil
	}()

	client, err := Dial(ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	want := Message{Type: MsgGetBlockchain}
	if err := client.Send(want); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if err := <-serverErrs; err != nil {
		t.Fatalf("server-side Receive: %v", err)
	}
	got := <-serverMsgs
	if got.Type != want.Type {
		t.Errorf("round trip: got type %q want %q", got.Type, want.Type)
	}
}

func TestSendToRefusedConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close() // nothing is listening anymore

	if err := SendTo(addr, Message{Type: MsgGetBlockchain}); err == nil {
		t.Error("SendTo a closed port should return an error, never panic")
	}
}
