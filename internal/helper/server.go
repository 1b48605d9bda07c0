package helper

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// shutdownGrace is the T=3s grace period spec.md §4.4 gives children
// between SIGTERM and SIGKILL on SHUTDOWN.
const shutdownGrace = 3 * time.Second

// pollTimeoutMillis bounds how long one Serve poll iteration can block,
// so exited children get reaped promptly even when no socket or pipe is
// readable, without a dedicated reaper goroutine.
const pollTimeoutMillis = 1000

// job tracks one RUN child from Start to its RESULT. The first RUN's
// child is the sandboxed program itself (spec.md §4.4 step 2); its exit
// ends the helper's life, and its status is forwarded as a RESULT on
// the connection that issued the RUN even when that RUN was detached.
type job struct {
	id     int
	connFd int
	wait   bool
	attach bool
	isMain bool

	cmd *exec.Cmd

	// Captured streams of a wait=true child, read cooperatively by the
	// poll loop. Both ends nil once drained to EOF (or for detached
	// children, which inherit the helper's own stdio instead).
	stdoutR, stderrR *os.File
	stdout, stderr   bytes.Buffer

	exited   bool
	exitCode int
}

// Server is the in-sandbox supervisor run as the sandbox's PID 1
// (spec.md §4.4, C8). It multiplexes the listening socket, every
// accepted connection — the long-held launcher connection plus any
// re-entrant `run` connections (spec.md §4.5) — and every wait=true
// child's captured stream pipes through a single
// golang.org/x/sys/unix.Poll loop on one goroutine. Children are never
// waited on with a blocking call: the loop's periodic non-blocking
// wait4 sweep observes exits, so a long-running RUN never stalls a
// PING, a SHUTDOWN, or another RUN (spec.md §5's "answers in arrival
// order" means RESULTs follow completion order while every other frame
// keeps flowing).
type Server struct {
	listenFd int
	done     bool

	conns map[int]*os.File

	mainSeen bool

	// jobs is keyed by child pid; entries are removed once the child's
	// exit has been observed and its RESULT (if owed) delivered.
	jobs map[int]*job
}

// NewServerFromFD wraps an inherited, already-listening socket fd
// (bwrap passes it through to the helper by not marking it
// close-on-exec, the same inheritance the teacher relies on for its
// info-fd/seccomp-fd pipes in hugbox.go).
func NewServerFromFD(fd int) (*Server, error) {
	return &Server{
		listenFd: fd,
		conns:    make(map[int]*os.File),
		jobs:     make(map[int]*job),
	}, nil
}

// Serve polls the listening socket, every accepted connection, and
// every tracked child's stream pipes until the sandboxed program
// exits, a SHUTDOWN frame is processed, or the listener errors out.
// Each poll iteration: reap any exited children, accept a pending
// connection, read at most one frame per readable connection, drain at
// most one chunk per readable pipe, then deliver RESULTs for jobs
// whose child has exited and whose streams hit EOF. A connection
// blocked mid-frame never starves the others since only one frame is
// read per readiness notification.
func (s *Server) Serve() error {
	for !s.done {
		fds := make([]unix.PollFd, 0, len(s.conns)+2*len(s.jobs)+1)
		fds = append(fds, unix.PollFd{Fd: int32(s.listenFd), Events: unix.POLLIN})
		connOrder := make([]int, 0, len(s.conns))
		for fd := range s.conns {
			fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
			connOrder = append(connOrder, fd)
		}
		type pipeTarget struct {
			j      *job
			stderr bool
		}
		var pipeOrder []pipeTarget
		for _, j := range s.jobs {
			if j.stdoutR != nil {
				fds = append(fds, unix.PollFd{Fd: int32(j.stdoutR.Fd()), Events: unix.POLLIN})
				pipeOrder = append(pipeOrder, pipeTarget{j, false})
			}
			if j.stderrR != nil {
				fds = append(fds, unix.PollFd{Fd: int32(j.stderrR.Fd()), Events: unix.POLLIN})
				pipeOrder = append(pipeOrder, pipeTarget{j, true})
			}
		}

		_, err := unix.Poll(fds, pollTimeoutMillis)
		s.reapChildren()
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		if fds[0].Revents&unix.POLLIN != 0 {
			s.acceptOne()
		}
		idx := 1
		for _, fd := range connOrder {
			if fds[idx].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
				s.handleReadable(fd)
			}
			idx++
		}
		for _, pt := range pipeOrder {
			if fds[idx].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
				s.drainPipe(pt.j, pt.stderr)
			}
			idx++
		}
		s.finalizeJobs()
	}

	s.shutdownAll()
	s.closeAllConns()
	return nil
}

func (s *Server) acceptOne() {
	connFd, _, err := unix.Accept(s.listenFd)
	if err != nil {
		return
	}
	unix.CloseOnExec(connFd)
	s.conns[connFd] = os.NewFile(uintptr(connFd), "helper-conn")
}

func (s *Server) handleReadable(fd int) {
	f, ok := s.conns[fd]
	if !ok {
		return
	}

	msg, err := ReadFrame(f)
	if err != nil {
		// spec.md §4.4: EOF on the socket is not an error; just drop this
		// connection and keep serving the others.
		s.closeConn(fd)
		return
	}

	switch msg.Type {
	case TypeHello:
		WriteFrame(f, Message{Type: TypeHello, Version: ProtocolVersion})
	case TypePing:
		WriteFrame(f, Message{Type: TypePong})
	case TypeRun:
		s.handleRun(fd, f, msg)
	case TypeShutdown:
		s.done = true
	default:
		WriteFrame(f, Message{Type: TypeError, ID: msg.ID, Code: 1, Msg: fmt.Sprintf("unknown frame type %q", msg.Type)})
	}
}

func (s *Server) closeConn(fd int) {
	if f, ok := s.conns[fd]; ok {
		f.Close()
		delete(s.conns, fd)
	}
}

func (s *Server) closeAllConns() {
	for fd, f := range s.conns {
		f.Close()
		delete(s.conns, fd)
	}
}

// handleRun acknowledges the RUN with READY (spec.md §4.4 step 3),
// starts the child without blocking, and registers it with the poll
// loop; the RESULT is delivered later, once reapChildren observes the
// exit and the captured streams hit EOF.
func (s *Server) handleRun(fd int, f *os.File, msg Message) {
	if len(msg.Argv) == 0 {
		WriteFrame(f, Message{Type: TypeError, ID: msg.ID, Code: 2, Msg: "RUN with empty argv"})
		return
	}

	isMain := !s.mainSeen
	s.mainSeen = true

	cmd := exec.Command(msg.Argv[0], msg.Argv[1:]...)
	cmd.Env = mergeEnv(os.Environ(), msg.Env)

	j := &job{id: msg.ID, connFd: fd, wait: msg.Wait, attach: msg.AttachStdio, isMain: isMain, cmd: cmd}

	if msg.Wait {
		// Captured streams are plain pipes handed to the child as
		// *os.File ends, so os/exec spawns no copying goroutines; the
		// read ends join the poll loop above.
		outR, outW, err := os.Pipe()
		if err != nil {
			WriteFrame(f, Message{Type: TypeError, ID: msg.ID, Code: 3, Msg: err.Error()})
			return
		}
		errR, errW, err := os.Pipe()
		if err != nil {
			outR.Close()
			outW.Close()
			WriteFrame(f, Message{Type: TypeError, ID: msg.ID, Code: 3, Msg: err.Error()})
			return
		}
		cmd.Stdout, cmd.Stderr = outW, errW
		if msg.AttachStdio {
			cmd.Stdin = os.Stdin
		}
		j.stdoutR, j.stderrR = outR, errR

		WriteFrame(f, Message{Type: TypeReady, ID: msg.ID})
		if err := cmd.Start(); err != nil {
			outR.Close()
			outW.Close()
			errR.Close()
			errW.Close()
			WriteFrame(f, Message{Type: TypeError, ID: msg.ID, Code: 3, Msg: err.Error()})
			if isMain {
				s.done = true
			}
			return
		}
		outW.Close()
		errW.Close()
	} else {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
		WriteFrame(f, Message{Type: TypeReady, ID: msg.ID})
		if err := cmd.Start(); err != nil {
			WriteFrame(f, Message{Type: TypeError, ID: msg.ID, Code: 3, Msg: err.Error()})
			if isMain {
				s.done = true
			}
			return
		}
	}

	s.jobs[cmd.Process.Pid] = j
}

// drainPipe reads one chunk from a job's captured stream; poll said the
// fd is readable, so a single read never blocks. EOF (or any read
// error) retires the pipe.
func (s *Server) drainPipe(j *job, stderr bool) {
	f, buf, echo := j.stdoutR, &j.stdout, os.Stdout
	if stderr {
		f, buf, echo = j.stderrR, &j.stderr, os.Stderr
	}
	chunk := make([]byte, 4096)
	n, err := f.Read(chunk)
	if n > 0 {
		buf.Write(chunk[:n])
		if j.attach {
			echo.Write(chunk[:n])
		}
	}
	if err != nil {
		f.Close()
		if stderr {
			j.stderrR = nil
		} else {
			j.stdoutR = nil
		}
	}
}

// finalizeJobs delivers the RESULT for every job whose child has exited
// and whose captured streams are fully drained, then forgets it. The
// sandboxed program's completion also ends the helper (spec.md §4.4:
// "the helper continues until the sandboxed program exits").
func (s *Server) finalizeJobs() {
	for pid, j := range s.jobs {
		if !j.exited || j.stdoutR != nil || j.stderrR != nil {
			continue
		}
		delete(s.jobs, pid)
		if j.wait || j.isMain {
			if f, ok := s.conns[j.connFd]; ok {
				WriteFrame(f, Message{
					Type:     TypeResult,
					ID:       j.id,
					ExitCode: j.exitCode,
					Stdout:   j.stdout.Bytes(),
					Stderr:   j.stderr.Bytes(),
				})
			}
		}
		if j.isMain {
			s.done = true
		}
	}
}

// reapChildren drains every exited child with a non-blocking wait4,
// the same syscall.Wait4(WNOHANG) idiom as runner.Process.Running and
// dbusproxy.Proxy.Running. Reaps by pid rather than via exec.Cmd.Wait
// since nothing else ever waits on tracked children, and as the
// sandbox's PID 1 this process may also need to reap namespace orphans
// reparented to it, hence wait4(-1) rather than one call per tracked
// pid.
func (s *Server) reapChildren() {
	for {
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &ws, syscall.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return
		}
		j, ok := s.jobs[pid]
		if !ok {
			continue
		}
		j.exited = true
		j.exitCode = ws.ExitStatus()
		if ws.Signaled() {
			j.exitCode = 128 + int(ws.Signal())
		}
	}
}

// shutdownAll forwards SIGTERM then SIGKILL to every live child, per
// spec.md §4.4 step 5, then delivers any RESULT still owed before the
// connections go away.
func (s *Server) shutdownAll() {
	for _, j := range s.jobs {
		if !j.exited && j.cmd.Process != nil {
			j.cmd.Process.Signal(syscall.SIGTERM)
		}
	}

	deadline := time.Now().Add(shutdownGrace)
	for {
		s.reapChildren()
		remaining := 0
		for _, j := range s.jobs {
			if !j.exited {
				remaining++
			}
		}
		if remaining == 0 {
			break
		}
		if time.Now().After(deadline) {
			for _, j := range s.jobs {
				if !j.exited && j.cmd.Process != nil {
					j.cmd.Process.Kill()
				}
			}
			time.Sleep(50 * time.Millisecond)
			s.reapChildren()
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	for _, j := range s.jobs {
		if j.stdoutR != nil {
			j.stdoutR.Close()
			j.stdoutR = nil
		}
		if j.stderrR != nil {
			j.stderrR.Close()
			j.stderrR = nil
		}
	}
	s.finalizeJobs()
}

func mergeEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overlay))
	out = append(out, base...)
	for k, v := range overlay {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}
