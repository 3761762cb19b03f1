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

package wire

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// SocketPath resolves the well-known daemon socket path from the
// environment per spec.md §6.2: ${XDG_RUNTIME_DIR}/${PIPEWIRE_CORE:-mediagraphd-0}.
func SocketPath() (string, error) {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		return "", fmt.Errorf("wire: XDG_RUNTIME_DIR is not set")
	}
	name := os.Getenv("PIPEWIRE_CORE")
	if name == "" {
		name = "mediagraphd-0"
	}
	return filepath.Join(dir, name), nil
}

// Listener accepts client connections on the daemon's well-known socket. It
// holds a lockfile for the lifetime of the listener so a second daemon
// instance cannot bind the same socket path (spec.md §6.2).
type Listener struct {
	path     string
	lockPath string
	lockFD   int
	sockFD   int
}

// Listen creates (or takes over) the daemon socket at path. A sibling
// "<path>.lock" file is opened and flock'd LOCK_EX|LOCK_NB; failure to
// acquire it means another daemon already owns the socket (ErrSocketBusy).
// A stale socket file left behind by a crashed daemon is removed once the
// lock is held.
func Listen(path string) (*Listener, error) {
	lockPath := path + ".lock"

	lockFD, err := unix.Open(lockPath, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0600)
	if err != nil {
		return nil, fmt.Errorf("wire: open lockfile: %w", err)
	}

	if err := unix.Flock(lockFD, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = unix.Close(lockFD)
		if err == unix.EWOULDBLOCK {
			return nil, ErrSocketBusy
		}
		return nil, fmt.Errorf("wire: flock lockfile: %w", err)
	}

	// the lock is ours: any socket file left behind is stale.
	_ = os.Remove(path)

	sockFD, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		_ = unix.Close(lockFD)
		return nil, fmt.Errorf("wire: socket: %w", err)
	}

	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(sockFD, addr); err != nil {
		_ = unix.Close(sockFD)
		_ = unix.Close(lockFD)
		return nil, fmt.Errorf("wire: bind: %w", err)
	}

	if err := unix.Listen(sockFD, 128); err != nil {
		_ = unix.Close(sockFD)
		_ = unix.Close(lockFD)
		return nil, fmt.Errorf("wire: listen: %w", err)
	}

	return &Listener{path: path, lockPath: lockPath, lockFD: lockFD, sockFD: sockFD}, nil
}

// FD returns the listening socket's file descriptor, for registration with
// package loop's epoll set.
func (l *Listener) FD() int {
	return l.sockFD
}

// Accept accepts one pending connection and captures its SO_PEERCRED
// credentials. It returns (nil, nil, false, nil) when no connection is
// pending (EAGAIN on a non-blocking listener).
func (l *Listener) Accept() (Conn, Credentials, bool, error) {
	fd, _, err := unix.Accept4(l.sockFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if err == unix.EAGAIN {
			return nil, Credentials{}, false, nil
		}
		return nil, Credentials{}, false, fmt.Errorf("wire: accept: %w", err)
	}

	ucred, err := unix.GetsockoptUcred(fd, unix.SOL_SOCKET, unix.SO_PEERCRED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, Credentials{}, false, fmt.Errorf("wire: getsockopt SO_PEERCRED: %w", err)
	}
	cred := Credentials{PID: ucred.Pid, UID: ucred.Uid, GID: ucred.Gid}

	return NewConn(fd, cred), cred, true, nil
}

// Close closes the listening socket and releases the lockfile. The socket
// path itself is left on disk for the next daemon's Listen call to remove.
func (l *Listener) Close() error {
	err1 := unix.Close(l.sockFD)
	err2 := unix.Flock(l.lockFD, unix.LOCK_UN)
	err3 := unix.Close(l.lockFD)
	if err1 != nil {
		return err1
	}
	if err2 != nil {
		return err2
	}
	return err3
}
