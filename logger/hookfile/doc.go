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

/*
Package hookfile provides a logrus hook for writing log entries to files with automatic
rotation detection and configurable formatting.

# Overview

The hookfile package implements a logrus.Hook that writes log entries directly to a file,
reopening it when an external tool (logrotate or similar) renames or removes the file out
from under the process.

# Design Philosophy

Each hook owns a single open file handle (via os.Root, scoped to the file's directory) and
writes to it under a mutex. There is no cross-hook sharing or buffering layer: one hook, one
file descriptor, one writer. A background goroutine started by Run checks once a second
whether the on-disk file still matches the open descriptor (by inode, via os.SameFile) and,
if not, closes and reopens it.

# Key Features

  - Rotation detection via inode comparison on a 1-second ticker
  - Configurable file and directory permissions, with optional directory creation
  - Field filtering (stack, timestamp, caller/file/line) independent of the formatter
  - Access log mode: writes entry.Message verbatim instead of formatting entry.Data

# Usage

	opts := logcfg.OptionsFile{
	    Filepath:   "/var/log/myapp.log",
	    CreatePath: true,
	    Create:     true,
	    FileMode:   0644,
	    PathMode:   0755,
	    LogLevel:   []string{"info", "warning", "error"},
	}
	hook, err := hookfile.New(opts, &logrus.TextFormatter{})
	if err != nil {
	    log.Fatal(err)
	}
	logger := logrus.New()
	logger.AddHook(hook)
	go hook.Run(ctx)
	defer hook.Close()

# Important Usage Notes

In normal mode (EnableAccessLog disabled), all log data MUST be passed via logrus.Entry.Data.
The Message parameter is ignored by the formatter:

	logger.WithField("msg", "user logged in").Info("")

NOT:

	logger.Info("user logged in") // this message is ignored

In access log mode, entry.Message is written as-is (with a trailing newline appended if
missing) and entry.Data is not formatted at all.

# Thread Safety

Write, Close, and the rotation check in Run all hold the same mutex, so a hook is safe for
concurrent use from multiple goroutines.
*/
package hookfile
