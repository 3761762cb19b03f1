/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	spfcbr "github.com/spf13/cobra"
	spfvpr "github.com/spf13/viper"

	"github.com/nabbar/mediagraphd/config"
	"github.com/nabbar/mediagraphd/core"
	"github.com/nabbar/mediagraphd/debughttp"
	liblog "github.com/nabbar/mediagraphd/logger"
	"github.com/nabbar/mediagraphd/loop"
	"github.com/nabbar/mediagraphd/pool"
	"github.com/nabbar/mediagraphd/wire"
)

const appVersion = "0.1.0"

func newRootCommand() *spfcbr.Command {
	v := spfvpr.New()
	var debugAddr string

	root := &spfcbr.Command{
		Use:     "mediagraphd",
		Short:   "A PipeWire-style media-graph daemon",
		Version: appVersion,
	}
	root.PersistentFlags().StringVar(&debugAddr, "debug-addr", "", "address for the loopback /debug/state and /metrics HTTP server, e.g. 127.0.0.1:9090")

	if err := config.RegisterFlags(root, v); err != nil {
		panic(err)
	}

	root.AddCommand(newRunCommand(v, &debugAddr))
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *spfcbr.Command {
	return &spfcbr.Command{
		Use:   "version",
		Short: "Print the daemon version",
		RunE: func(cmd *spfcbr.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), appVersion)
			return err
		},
	}
}

func newRunCommand(v *spfvpr.Viper, debugAddr *string) *spfcbr.Command {
	return &spfcbr.Command{
		Use:   "run",
		Short: "Start the daemon and listen for client connections",
		RunE: func(cmd *spfcbr.Command, args []string) error {
			return runDaemon(v, *debugAddr)
		},
	}
}

func runDaemon(v *spfvpr.Viper, debugAddr string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	ctx := context.Background()

	log, err := liblog.NewFrom(ctx, &cfg.Log)
	if err != nil {
		return fmt.Errorf("mediagraphd: logger: %w", err)
	}
	defer log.Close()

	socketPath := cfg.SocketPath()
	log.Info("starting mediagraphd", map[string]any{"socket": socketPath})

	listener, err := wire.Listen(socketPath)
	if err != nil {
		return fmt.Errorf("mediagraphd: listen %s: %w", socketPath, err)
	}
	defer listener.Close()

	mempool := pool.New()
	srv := core.NewServer()
	srv.SetPool(mempool)
	conns := core.NewConns(srv)

	var metrics *debughttp.Metrics
	if debugAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = debughttp.NewMetrics(reg)
		dbg, err := debughttp.New(debugAddr, func() debughttp.Snapshot {
			return debughttp.Snapshot{}
		}, reg, cfg.Debug.ReadHeaderTimeout.Time())
		if err != nil {
			return fmt.Errorf("mediagraphd: debug http: %w", err)
		}
		dbg.SetBlockDump(func(id uint32) ([]byte, bool) {
			blk, berr := mempool.Get(id)
			if berr != nil {
				return nil, false
			}
			return blk.Bytes(), true
		})
		go func() {
			if err := dbg.Serve(); err != nil {
				log.Error("debug http server stopped", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Debug.ShutdownGrace.Time())
			defer cancel()
			_ = dbg.Shutdown(ctx)
		}()
		log.Info("debug http listening", map[string]any{"addr": dbg.Addr()})
	}

	mainLoop, err := loop.New()
	if err != nil {
		return fmt.Errorf("mediagraphd: event loop: %w", err)
	}
	defer mainLoop.Close()

	live := make(map[int]wire.Conn)
	mainLoop.BeforeIterate = func() {
		for _, conn := range live {
			_ = conn.Flush()
		}
	}

	var nextClientID uint32
	dropClient := func(fd int, clientID uint32) {
		conn := live[fd]
		delete(live, fd)
		_ = mainLoop.RemoveFD(fd)
		conns.Detach(clientID)
		srv.RemoveClient(clientID)
		if conn != nil {
			_ = conn.Close()
		}
		if metrics != nil {
			metrics.ClientsConnected.Dec()
		}
		log.Info("client disconnected", map[string]any{"clientID": clientID})
	}

	acceptClient := func(fd int, mask loop.EventMask) {
		for {
			conn, cred, ok, aerr := listener.Accept()
			if aerr != nil {
				log.Error("accept failed", aerr)
				return
			}
			if !ok {
				return
			}

			nextClientID++
			clientID := nextClientID
			if cfg.Limits.MaxClients > 0 && len(live) >= cfg.Limits.MaxClients {
				log.Info("rejecting connection over maxClients limit", map[string]any{"clientID": clientID})
				_ = conn.Close()
				continue
			}

			srv.AddClient(clientID)
			conns.Attach(clientID, conn)
			live[conn.FD()] = conn

			cfd := conn.FD()
			if aerr := mainLoop.AddFD(cfd, loop.EventIn, func(fd int, mask loop.EventMask) {
				if mask&(loop.EventHangup|loop.EventError) != 0 {
					dropClient(fd, clientID)
					return
				}
				if rerr := conn.ReadFromSocket(); rerr != nil {
					dropClient(fd, clientID)
					return
				}
				if perr := conns.Pump(clientID, conn); perr != nil {
					dropClient(fd, clientID)
				}
			}); aerr != nil {
				log.Error("register client fd failed", aerr)
				dropClient(cfd, clientID)
				continue
			}

			if metrics != nil {
				metrics.ClientsConnected.Inc()
			}
			log.Info("client connected", map[string]any{
				"clientID": clientID,
				"pid":      cred.PID,
				"uid":      cred.UID,
			})
		}
	}

	if aerr := mainLoop.AddFD(listener.FD(), loop.EventIn, acceptClient); aerr != nil {
		return fmt.Errorf("mediagraphd: register listener fd: %w", aerr)
	}

	loopDone := make(chan struct{})
	go func() {
		mainLoop.Run()
		close(loopDone)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutting down on signal", nil)
	case <-loopDone:
		return fmt.Errorf("mediagraphd: event loop stopped unexpectedly")
	}

	mainLoop.Stop()
	<-loopDone
	return nil
}
