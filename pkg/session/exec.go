package session

// CommandResult is the outcome of a remote command. A non-zero exit status is
// reported here, not as an error.
type CommandResult struct {
	Command    string
	Stdout     string
	Stderr     string
	ExitStatus int
}

// Success reports whether the command exited zero.
func (r *CommandResult) Success() bool {
	return r.ExitStatus == 0
}

// Exec runs cmd on a new session channel and waits for it to finish.
func (s *Session) Exec(cmd string) (*CommandResult, error) {
	s.mu.Lock()
	if s.state != StateAuthenticated {
		s.mu.Unlock()
		return nil, newError(KindSession, "ssh session is not authenticated", nil)
	}
	transport := s.transport
	s.mu.Unlock()

	s.debugf("Running command on %s: %s", s.Host(), cmd)
	res, err := transport.Exec(cmd)
	if err != nil {
		return nil, fromEngine(err, KindChannel)
	}

	return &CommandResult{
		Command:    cmd,
		Stdout:     string(res.Stdout),
		Stderr:     string(res.Stderr),
		ExitStatus: res.ExitStatus,
	}, nil
}
