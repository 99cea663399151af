package whatsapp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/user/silent-god/config"
	"github.com/user/silent-god/internal/types"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
)

// QRCodeManager handles QR code generation and authentication
type QRCodeManager struct {
	clientManager  *ClientManager
	sessionManager *SessionManager
	config         config.Config
	logger         *zap.Logger
	timeout        time.Duration
}

// QRCode is a pairing code and its rendered image
type QRCode struct {
	PhoneNumber string `json:"phone_number"`
	Code        string `json:"qr_code"`
	ImagePath   string `json:"image_path"`
}

// NewQRCodeManager creates a new QR code manager
func NewQRCodeManager(clientManager *ClientManager, sessionManager *SessionManager, cfg config.Config, logger *zap.Logger) *QRCodeManager {
	return &QRCodeManager{
		clientManager:  clientManager,
		sessionManager: sessionManager,
		config:         cfg,
		logger:         logger,
		timeout:        60 * time.Second,
	}
}

// GenerateQRCode starts a pairing for the phone number and renders its first
// code. Pairing completes in the background.
func (qm *QRCodeManager) GenerateQRCode(phoneNumber string) (*QRCode, error) {
	qrChan, err := qm.clientManager.GetQRChannel(phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to start pairing: %w", err)
	}

	qrDir := filepath.Join(qm.config.WhatsApp.StoreDir, "qrcodes")
	if err := os.MkdirAll(qrDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create QR code directory: %w", err)
	}

	select {
	case evt, ok := <-qrChan:
		if !ok {
			return nil, fmt.Errorf("pairing channel closed")
		}
		if evt.Event != "code" {
			return nil, fmt.Errorf("unexpected QR event: %s", evt.Event)
		}

		qrPath := filepath.Join(qrDir, phoneNumber+".png")
		if err := qrcode.WriteFile(evt.Code, qrcode.Medium, 256, qrPath); err != nil {
			return nil, fmt.Errorf("failed to generate QR code image: %w", err)
		}

		qm.logger.Info("QR code generated",
			zap.String("phone_number", phoneNumber),
			zap.String("path", qrPath))

		go qm.awaitPairing(phoneNumber, qrChan)

		return &QRCode{PhoneNumber: phoneNumber, Code: evt.Code, ImagePath: qrPath}, nil
	case <-time.After(qm.timeout):
		return nil, fmt.Errorf("timeout waiting for QR code")
	}
}

// awaitPairing drains the pairing channel and records the session once the
// phone has scanned the code
func (qm *QRCodeManager) awaitPairing(phoneNumber string, qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			continue
		case "success":
			qm.clientManager.mutex.RLock()
			info, ok := qm.clientManager.clients[phoneNumber]
			qm.clientManager.mutex.RUnlock()
			if !ok {
				return
			}
			session := SessionInfo{
				ID:          info.UUID,
				PhoneNumber: phoneNumber,
				CreatedAt:   time.Now(),
			}
			if info.Store != nil && info.Store.ID != nil {
				session.JID = info.Store.ID.String()
			}
			if err := qm.sessionManager.SaveSession(session); err != nil {
				qm.logger.Error("Failed to save session", zap.String("phone_number", phoneNumber), zap.Error(err))
			}
			qm.logger.Info("WhatsApp paired", zap.String("phone_number", phoneNumber))
		default:
			qm.logger.Warn("Pairing ended",
				zap.String("phone_number", phoneNumber),
				zap.String("event", evt.Event))
		}
	}
}

// SessionManager handles WhatsApp session management
type SessionManager struct {
	storeDir string
	logger   *zap.Logger
}

// NewSessionManager creates a new session manager
func NewSessionManager(storeDir string, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		storeDir: storeDir,
		logger:   logger,
	}
}

// SessionInfo holds information about a WhatsApp session
type SessionInfo struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	JID         string    `json:"jid,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListSessions returns all available WhatsApp sessions
func (sm *SessionManager) ListSessions() ([]SessionInfo, error) {
	if err := os.MkdirAll(sm.storeDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(sm.storeDir, "store_*.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to list session files: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(matches))
	for _, match := range matches {
		phoneNumber, sessionID, ok := parseStoreName(filepath.Base(match))
		if !ok {
			sm.logger.Warn("Failed to parse session filename", zap.String("filename", filepath.Base(match)))
			continue
		}

		session := SessionInfo{
			ID:          sessionID,
			PhoneNumber: phoneNumber,
		}
		if fileInfo, err := os.Stat(match); err == nil {
			session.CreatedAt = fileInfo.ModTime()
		}
		if saved, err := sm.loadSession(phoneNumber, sessionID); err == nil {
			session.JID = saved.JID
			session.CreatedAt = saved.CreatedAt
		} else {
			session.JID = sm.deviceJID(match)
		}

		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	return sessions, nil
}

// deviceJID reads the paired device out of a session database
func (sm *SessionManager) deviceJID(path string) string {
	container, err := sqlstore.New("sqlite3", "file:"+path+"?_foreign_keys=on", waLog.Stdout("Database", "ERROR", true))
	if err != nil {
		sm.logger.Warn("Failed to open session database", zap.String("path", path), zap.Error(err))
		return ""
	}

	deviceStore, err := container.GetFirstDevice()
	if err != nil || deviceStore.ID == nil {
		return ""
	}
	return deviceStore.ID.String()
}

func (sm *SessionManager) infoPath(phoneNumber, sessionID string) string {
	return filepath.Join(sm.storeDir, "sessions", fmt.Sprintf("%s_%s.json", phoneNumber, sessionID))
}

func (sm *SessionManager) loadSession(phoneNumber, sessionID string) (SessionInfo, error) {
	var session SessionInfo
	data, err := os.ReadFile(sm.infoPath(phoneNumber, sessionID))
	if err != nil {
		return session, err
	}
	err = json.Unmarshal(data, &session)
	return session, err
}

// SaveSession persists session information
func (sm *SessionManager) SaveSession(session SessionInfo) error {
	if err := os.MkdirAll(filepath.Join(sm.storeDir, "sessions"), 0755); err != nil {
		return fmt.Errorf("failed to create sessions directory: %w", err)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.WriteFile(sm.infoPath(session.PhoneNumber, session.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// DeleteSession removes a WhatsApp session
func (sm *SessionManager) DeleteSession(phoneNumber, sessionID string) error {
	dbPath := filepath.Join(sm.storeDir, storeName(phoneNumber, sessionID))
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session database: %w", err)
	}

	if err := os.Remove(sm.infoPath(phoneNumber, sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session info: %w", err)
	}

	return nil
}

// MessageFormatter handles formatting world messages for WhatsApp
type MessageFormatter struct {
	// Number of chronicle entries shown in a status message
	recentLogs int
}

// NewMessageFormatter creates a new message formatter
func NewMessageFormatter() *MessageFormatter {
	return &MessageFormatter{recentLogs: 3}
}

// FormatStatusMessage summarizes the world for a prophet
func (mf *MessageFormatter) FormatStatusMessage(snap types.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🌍 *THE WORLD IN YEAR %d* 🌍\n\n", snap.Stats.Year)
	fmt.Fprintf(&b, "Era: %s\n", snap.Stats.TechnologicalLevel)
	fmt.Fprintf(&b, "Spirit: %s\n", snap.Stats.CulturalVibe)
	fmt.Fprintf(&b, "Faith: %s\n", snap.Stats.DominantReligion)
	fmt.Fprintf(&b, "Population: %d\n", snap.Stats.Population)

	if !snap.Playing {
		b.WriteString("Time is frozen.\n")
	}

	if len(snap.Factions) > 0 {
		factions := make([]types.Faction, len(snap.Factions))
		copy(factions, snap.Factions)
		sort.SliceStable(factions, func(i, j int) bool {
			return factions[i].Power > factions[j].Power
		})

		b.WriteString("\n*FACTIONS:*\n")
		for _, f := range factions {
			fmt.Fprintf(&b, "%s: power %d, devotion %+d\n", f.Name, f.Power, f.Attitude)
		}
	}

	start := len(snap.Logs) - mf.recentLogs
	if start < 0 {
		start = 0
	}
	if recent := snap.Logs[start:]; len(recent) > 0 {
		b.WriteString("\n*LATELY:*\n")
		for _, entry := range recent {
			fmt.Fprintf(&b, "[%d] %s\n", entry.Year, entry.Content)
		}
	}

	if len(snap.Queue) > 0 {
		fmt.Fprintf(&b, "\n%d decree(s) await the next turn.\n", len(snap.Queue))
	}
	if snap.PendingDecision != nil {
		fmt.Fprintf(&b, "\n🙏 %s awaits your answer. Send */petition*.\n", snap.PendingDecision.SenderName)
	}

	return b.String()
}

// FormatHelpMessage lists the prophet commands
func (mf *MessageFormatter) FormatHelpMessage() string {
	return "✨ *COMMANDS OF THE SILENT GOD* ✨\n\n" +
		"*/status* - the state of the world\n" +
		"*/decree [words]* - speak to your people\n" +
		"*/petition* - show the open petition\n" +
		"*/a*, */b*, */c*, */d* - answer the petition\n" +
		"*/silence* - let the petition go unanswered\n" +
		"*/help* - this message"
}
