package control

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumina-home/lumina-core/internal/auth"
	"github.com/lumina-home/lumina-core/internal/bus"
	"github.com/lumina-home/lumina-core/internal/device"
	"github.com/lumina-home/lumina-core/internal/house"
	"github.com/lumina-home/lumina-core/internal/wire"
)

// Response action tags.
const (
	actionConnected       = "CONNECTED"
	actionPong            = "PONG"
	actionLoginSuccess    = "LOGIN_SUCCESS"
	actionLoginFailed     = "LOGIN_FAILED"
	actionRegisterSuccess = "REGISTER_SUCCESS"
	actionDevicesList     = "DEVICES_LIST"
	actionDeviceInfo      = "DEVICE_INFO"
	actionDeviceUpdated   = "DEVICE_UPDATED"
	actionRoomsList       = "ROOMS_LIST"
	actionLogoutSuccess   = "LOGOUT_SUCCESS"
	actionGoodbye         = "GOODBYE"
	actionAuthRequired    = "AUTH_REQUIRED"
	actionTokenExpired    = "TOKEN_EXPIRED"
)

// maxLineBytes bounds a single request line. Device list responses can
// be large but requests never are; 1MB is generous.
const maxLineBytes = 1 << 20

// session is one control connection. Created on accept, destroyed on
// socket close or DISCONNECT; never persisted.
type session struct {
	id   string
	num  int64
	conn net.Conn
	srv  *Server

	writeMu sync.Mutex

	authMu sync.Mutex
	user   *auth.User
	token  string
}

func newSession(srv *Server, conn net.Conn) *session {
	return &session{
		id:   "sess-" + uuid.NewString()[:8],
		num:  srv.seq.Add(1),
		conn: conn,
		srv:  srv,
	}
}

// run drives the session until the peer disconnects. It executes on a
// pooled worker goroutine.
func (s *session) run() {
	s.srv.addSession(s)
	defer s.srv.removeSession(s)
	defer s.conn.Close()

	s.srv.logger.Info("client connected",
		"session_id", s.id,
		"client", s.num,
		"remote", s.conn.RemoteAddr().String(),
	)

	s.send(wire.OK(actionConnected).
		Set("message", "Welcome to Lumina Core").
		Set("clientId", s.num))

	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if closing := s.handle(line); closing {
			break
		}
	}

	s.srv.logger.Info("client disconnected", "session_id", s.id)
}

// handle processes one request line. The returned flag is true when the
// session should close (DISCONNECT).
func (s *session) handle(line string) bool {
	msg, err := wire.Parse(line)
	if err != nil {
		// Protocol errors keep the connection open.
		s.send(wire.ErrorMessage("malformed payload"))
		return false
	}

	action := strings.ToUpper(msg.GetString(wire.FieldAction))
	if action == "" {
		s.send(wire.ErrorMessage("missing 'action' field"))
		return false
	}

	switch action {
	case "PING":
		s.handlePing()
	case "LOGIN":
		s.handleLogin(msg)
	case "REGISTER":
		s.handleRegister(msg)
	case "GET_DEVICES":
		s.handleGetDevices(msg)
	case "GET_DEVICE":
		s.handleGetDevice(msg)
	case "DEVICE_CONTROL":
		s.handleDeviceControl(msg)
	case "GET_ROOMS":
		s.handleGetRooms()
	case "LOGOUT":
		s.handleLogout()
	case "DISCONNECT":
		s.send(wire.OK(actionGoodbye).Set("message", "goodbye"))
		return true
	default:
		s.send(wire.ErrorMessage("unknown action: " + action))
	}

	return false
}

func (s *session) handlePing() {
	s.send(wire.OK(actionPong).
		Set("timestamp", time.Now().UnixMilli()).
		Set("loggedIn", s.loggedIn()))
}

func (s *session) handleLogin(msg *wire.Message) {
	username := msg.GetString("username")
	password := msg.GetString("password")

	if username == "" || password == "" {
		s.send(wire.ErrorMessage("missing credentials"))
		return
	}

	user, err := s.srv.opts.Users.GetByUsername(s.srv.ctx, username)
	if err != nil {
		s.send(errorAction(actionLoginFailed, "invalid username or password"))
		return
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		s.send(errorAction(actionLoginFailed, "invalid username or password"))
		return
	}

	token, err := auth.IssueToken(user, s.srv.opts.JWTSecret, s.srv.opts.TokenTTL)
	if err != nil {
		s.srv.logger.Error("issuing token", "username", username, "error", err)
		s.send(errorAction(actionLoginFailed, "login failed"))
		return
	}

	s.setUser(user, token)

	s.srv.logger.Info("login", "session_id", s.id, "username", username)

	s.send(wire.OK(actionLoginSuccess).
		Set("username", user.Username).
		Set("role", string(user.Role)).
		Set("houseId", user.HouseID).
		Set("token", token).
		Set("tokenType", "JWT").
		Set("message", "login successful"))
}

func (s *session) handleRegister(msg *wire.Message) {
	username := msg.GetString("username")
	password := msg.GetString("password")

	if username == "" || password == "" {
		s.send(wire.ErrorMessage("missing required fields"))
		return
	}
	if !auth.IsValidUsername(username) {
		s.send(wire.ErrorMessage("invalid username"))
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		s.srv.logger.Error("hashing password", "error", err)
		s.send(wire.ErrorMessage("error creating user"))
		return
	}

	user := &auth.User{
		Username:     username,
		PasswordHash: hash,
		Role:         auth.RoleUser,
	}

	// New accounts join the first house, same as the seeded admin.
	if h, err := s.srv.opts.Houses.GetFirst(s.srv.ctx); err == nil {
		user.HouseID = h.ID
	}

	if err := s.srv.opts.Users.Create(s.srv.ctx, user); err != nil {
		if errors.Is(err, auth.ErrUsernameExists) {
			s.send(wire.ErrorMessage("user already exists"))
			return
		}
		s.srv.logger.Error("creating user", "username", username, "error", err)
		s.send(wire.ErrorMessage("error creating user"))
		return
	}

	s.srv.logger.Info("user registered", "username", username)

	s.send(wire.OK(actionRegisterSuccess).
		Set("username", user.Username).
		Set("message", "user registered"))
}

func (s *session) handleGetDevices(msg *wire.Message) {
	user := s.requireLogin()
	if user == nil {
		return
	}

	filter := device.Filter{
		HouseID: user.HouseID,
		Room:    msg.GetString("room"),
		Type:    device.Type(msg.GetString("type")),
	}

	devices, err := s.srv.opts.Devices.List(s.srv.ctx, filter)
	if err != nil {
		s.srv.logger.Error("listing devices", "error", err)
		s.send(wire.ErrorMessage("error listing devices"))
		return
	}

	s.send(wire.OK(actionDevicesList).
		Set("count", int64(len(devices))).
		Set("devices", device.ListBlob(devices)))
}

func (s *session) handleGetDevice(msg *wire.Message) {
	if s.requireLogin() == nil {
		return
	}

	deviceID := msg.GetString("deviceId")
	if deviceID == "" {
		s.send(wire.ErrorMessage("missing deviceId"))
		return
	}

	d, err := s.srv.opts.Devices.Get(s.srv.ctx, deviceID)
	if err != nil {
		s.send(wire.ErrorMessage("device not found"))
		return
	}

	s.send(wire.OK(actionDeviceInfo).Set("device", d.Blob()))
}

func (s *session) handleDeviceControl(msg *wire.Message) {
	user := s.requireLogin()
	if user == nil {
		return
	}

	deviceID := msg.GetString("deviceId")
	command := strings.ToUpper(msg.GetString("command"))
	if deviceID == "" || command == "" {
		s.send(wire.ErrorMessage("missing deviceId or command"))
		return
	}

	value, _ := msg.Get("value")
	cmd, err := device.ParseCommand(command, value,
		msg.GetString("color"), msg.GetString("speakerCommand"))
	if err != nil {
		switch {
		case errors.Is(err, device.ErrUnknownCommand):
			s.send(wire.ErrorMessage("unknown command: " + command))
		case errors.Is(err, device.ErrInvalidValue):
			s.send(wire.ErrorMessage("invalid value"))
		case errors.Is(err, device.ErrMissingField):
			s.send(wire.ErrorMessage("missing command parameter"))
		default:
			s.send(wire.ErrorMessage("invalid command"))
		}
		return
	}

	updated, err := s.srv.opts.Devices.Apply(s.srv.ctx, deviceID, cmd)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			s.send(wire.ErrorMessage("device not found"))
			return
		}
		s.srv.logger.Error("applying command",
			"device_id", deviceID,
			"command", command,
			"error", err,
		)
		s.send(wire.ErrorMessage("error updating device"))
		return
	}

	blob := updated.Blob()

	s.send(wire.OK(actionDeviceUpdated).
		Set("deviceId", deviceID).
		Set("command", command).
		Set("device", blob))

	// One envelope per mutation; every other transport and session
	// receives it through the bus.
	s.srv.opts.Hub.Publish(bus.Envelope{
		Action:    bus.ActionDeviceChanged,
		DeviceID:  deviceID,
		Device:    blob,
		ChangedBy: user.Username,
		Origin:    s.id,
	})
}

func (s *session) handleGetRooms() {
	user := s.requireLogin()
	if user == nil {
		return
	}

	h, err := s.srv.opts.Houses.Get(s.srv.ctx, user.HouseID)
	if err != nil {
		if errors.Is(err, house.ErrHouseNotFound) {
			s.send(wire.ErrorMessage("house not found"))
			return
		}
		s.srv.logger.Error("loading house", "house_id", user.HouseID, "error", err)
		s.send(wire.ErrorMessage("error loading rooms"))
		return
	}

	s.send(wire.OK(actionRoomsList).
		Set("houseName", h.Name).
		Set("rooms", roomsBlob(h.Rooms)))
}

func (s *session) handleLogout() {
	if user := s.currentUser(); user != nil {
		s.srv.logger.Info("logout", "session_id", s.id, "username", user.Username)
	}
	s.setUser(nil, "")

	s.send(wire.OK(actionLogoutSuccess).Set("message", "session closed"))
}

// requireLogin returns the session user when the session is
// authenticated and its token still validates. Otherwise it sends the
// appropriate error, demoting the session on token expiry, and returns
// nil.
func (s *session) requireLogin() *auth.User {
	user := s.currentUser()
	if user == nil {
		s.send(errorAction(actionAuthRequired, "login required"))
		return nil
	}

	if _, err := auth.ValidateToken(s.currentToken(), s.srv.opts.JWTSecret); err != nil {
		s.setUser(nil, "")
		s.send(errorAction(actionTokenExpired, "session expired, log in again"))
		return nil
	}

	return user
}

func (s *session) loggedIn() bool {
	return s.currentUser() != nil
}

func (s *session) currentUser() *auth.User {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	return s.user
}

func (s *session) currentToken() string {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	return s.token
}

func (s *session) setUser(user *auth.User, token string) {
	s.authMu.Lock()
	s.user = user
	s.token = token
	s.authMu.Unlock()
}

// send writes one response line. Write errors are left to the read loop
// to notice; the peer is already gone.
func (s *session) send(msg *wire.Message) {
	s.sendLine(msg.String()) //nolint:errcheck
}

func (s *session) sendLine(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.Write([]byte(line + "\n"))
	return err
}

// errorAction builds an ERROR response carrying an outcome action tag.
func errorAction(action, text string) *wire.Message {
	return wire.NewMessage().
		Set(wire.FieldStatus, wire.StatusError).
		Set(wire.FieldAction, action).
		Set(wire.FieldMessage, text)
}

// roomsBlob renders a room list as a JSON string array fragment.
func roomsBlob(rooms []string) wire.Raw {
	var b strings.Builder
	b.WriteByte('[')
	for i, room := range rooms {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(wire.Quote(room))
	}
	b.WriteByte(']')
	return wire.Raw(b.String())
}
