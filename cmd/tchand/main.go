// Command tchand runs a single tchannel2 node: it listens for inbound
// peers, optionally dials one outbound peer, registers an echo endpoint,
// and (with -send) issues one call before exiting.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/tchannel2/tchannel2"
)

func main() {
	tchannel2.Exit1IfVersionReq()

	listen := flag.String("listen", "127.0.0.1:4040", "host:port to listen on")
	connect := flag.String("connect", "", "host:port of a peer to dial")
	processName := flag.String("process-name", "", "process_name advertised in the init handshake")
	sendArg2 := flag.String("send", "", "if set, call the echo endpoint on -connect with this arg2 payload and print the reply")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *processName == "" {
		*processName = fmt.Sprintf("tchand[%d]", os.Getpid())
	}

	cfg := tchannel2.NewConfig()
	cfg.ServerAddr = *listen
	cfg.ProcessName = *processName
	cfg.WithLogger(tchannel2.NewStderrLogger(*debug))

	dial := func(addr string) (io.ReadWriteCloser, error) {
		return net.DialTimeout("tcp", addr, cfg.DialTimeout)
	}

	ch := tchannel2.NewChannel(cfg, dial)

	if err := ch.RegisterService("echo", func(arg2, arg3 []byte, remoteName string, respond tchannel2.RespondFunc) {
		respond(nil, arg2, arg3)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "register echo: %v\n", err)
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "listen %s: %v\n", *listen, err)
		os.Exit(1)
	}
	go acceptLoop(ln, ch)

	if *connect != "" && *sendArg2 != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		res2, _, err := ch.Call(ctx, tchannel2.CallOptions{Host: *connect, Timeout: 1000}, []byte("echo"), []byte(*sendArg2), nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "call failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("reply: %s\n", string(res2))
		return
	}

	select {}
}

func acceptLoop(ln net.Listener, ch *tchannel2.Channel) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		ch.AcceptConnection(conn, conn.RemoteAddr().String())
	}
}
