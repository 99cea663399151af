package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/silent-god/config"
	"github.com/user/silent-god/internal/game"
	"github.com/user/silent-god/internal/interfaces"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waTypes "go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

// answerTimeout bounds a turn triggered from chat
const answerTimeout = 2 * time.Minute

// ClientManager handles WhatsApp client connections and relays prophet
// commands to the world
type ClientManager struct {
	clients      map[string]*ClientInfo
	worldManager interfaces.WorldManager
	formatter    *MessageFormatter
	config       config.Config
	logger       *zap.Logger
	mutex        sync.RWMutex
}

// ClientInfo holds information about a WhatsApp client connection
type ClientInfo struct {
	UUID        string
	PhoneNumber string
	Client      *whatsmeow.Client
	Store       *store.Device
}

var _ interfaces.MessageSender = (*ClientManager)(nil)

// NewClientManager creates a new WhatsApp client manager
func NewClientManager(worldManager interfaces.WorldManager, cfg config.Config, logger *zap.Logger) *ClientManager {
	cm := &ClientManager{
		clients:      make(map[string]*ClientInfo),
		worldManager: worldManager,
		formatter:    NewMessageFormatter(),
		config:       cfg,
		logger:       logger,
	}

	cm.restoreExistingSessions()

	return cm
}

// restoreExistingSessions attempts to restore all existing WhatsApp sessions
func (cm *ClientManager) restoreExistingSessions() {
	if err := os.MkdirAll(cm.config.WhatsApp.StoreDir, 0755); err != nil {
		cm.logger.Error("Failed to create store directory", zap.Error(err))
		return
	}

	pattern := filepath.Join(cm.config.WhatsApp.StoreDir, "store_*.db")
	files, err := filepath.Glob(pattern)
	if err != nil {
		cm.logger.Error("Failed to scan for existing sessions", zap.Error(err))
		return
	}

	type sessionFile struct {
		file      string
		sessionID string
		modTime   time.Time
	}
	latestSessions := make(map[string]sessionFile)

	// Only the most recent session of each phone number survives
	for _, file := range files {
		phoneNumber, sessionID, ok := parseStoreName(filepath.Base(file))
		if !ok {
			continue
		}

		fileInfo, err := os.Stat(file)
		if err != nil {
			cm.logger.Error("Failed to get file info",
				zap.String("file", file),
				zap.Error(err))
			continue
		}

		if current, exists := latestSessions[phoneNumber]; !exists || fileInfo.ModTime().After(current.modTime) {
			latestSessions[phoneNumber] = sessionFile{
				file:      file,
				sessionID: sessionID,
				modTime:   fileInfo.ModTime(),
			}
		}
	}

	for phoneNumber, latest := range latestSessions {
		for _, file := range files {
			if strings.Contains(file, "store_"+phoneNumber+"_") && file != latest.file {
				if err := os.Remove(file); err != nil {
					cm.logger.Error("Failed to remove old session file",
						zap.String("file", file),
						zap.Error(err))
				} else {
					cm.logger.Info("Removed old session file",
						zap.String("file", file))
				}
			}
		}

		container, err := sqlstore.New("sqlite3", storeDSN(cm.config.WhatsApp.StoreDir, filepath.Base(latest.file)), waLog.Stdout("Database", "INFO", true))
		if err != nil {
			cm.logger.Error("Failed to initialize database",
				zap.String("phoneNumber", phoneNumber),
				zap.Error(err))
			continue
		}

		deviceStore, err := container.GetFirstDevice()
		if err != nil {
			cm.logger.Info("No valid session found in database",
				zap.String("phoneNumber", phoneNumber))
			continue
		}

		client := whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "INFO", true))
		client.AddEventHandler(cm.handleWhatsAppEvent)

		cm.mutex.Lock()
		cm.clients[phoneNumber] = &ClientInfo{
			UUID:        latest.sessionID,
			PhoneNumber: phoneNumber,
			Client:      client,
			Store:       deviceStore,
		}
		cm.mutex.Unlock()

		if client.Store.ID == nil {
			cm.logger.Info("Session requires QR code login",
				zap.String("phoneNumber", phoneNumber))
			continue
		}

		go func(phone string, cli *whatsmeow.Client) {
			if err := cli.Connect(); err != nil {
				cm.logger.Error("Failed to connect restored client",
					zap.String("phoneNumber", phone),
					zap.Error(err))
				return
			}
			cm.logger.Info("Successfully connected restored client",
				zap.String("phoneNumber", phone))
		}(phoneNumber, client)
	}
}

// SetupClient initializes a new WhatsApp client
func (cm *ClientManager) SetupClient(sessionID, phoneNumber string) (*whatsmeow.Client, error) {
	if err := os.MkdirAll(cm.config.WhatsApp.StoreDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	container, err := sqlstore.New("sqlite3", storeDSN(cm.config.WhatsApp.StoreDir, storeName(phoneNumber, sessionID)), waLog.Stdout("Database", "INFO", true))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deviceStore, err := container.GetFirstDevice()
	if err != nil {
		deviceStore = container.NewDevice()
	}

	store.DeviceProps.RequireFullSync = proto.Bool(false)
	store.DeviceProps.Os = proto.String(cm.config.WhatsApp.ClientName)

	client := whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "INFO", true))
	client.AddEventHandler(cm.handleWhatsAppEvent)

	cm.mutex.Lock()
	cm.clients[phoneNumber] = &ClientInfo{
		UUID:        sessionID,
		PhoneNumber: phoneNumber,
		Client:      client,
		Store:       deviceStore,
	}
	cm.mutex.Unlock()

	return client, nil
}

// GetClient retrieves a WhatsApp client by phone number
func (cm *ClientManager) GetClient(phoneNumber string) (*whatsmeow.Client, bool) {
	cm.mutex.RLock()
	clientInfo, exists := cm.clients[phoneNumber]
	cm.mutex.RUnlock()

	if !exists {
		return nil, false
	}

	// Reconnect paired clients that dropped
	if !clientInfo.Client.IsConnected() && clientInfo.Store.ID != nil {
		if err := clientInfo.Client.Connect(); err != nil {
			cm.logger.Error("Failed to connect client",
				zap.String("phoneNumber", phoneNumber),
				zap.Error(err))
			return nil, false
		}
		cm.logger.Info("Successfully reconnected client",
			zap.String("phoneNumber", phoneNumber))
	}

	return clientInfo.Client, true
}

// anyClient returns a connected client, used when the bot number is not
// known to the caller
func (cm *ClientManager) anyClient() *whatsmeow.Client {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	for _, clientInfo := range cm.clients {
		if clientInfo.Client != nil && clientInfo.Client.IsConnected() {
			return clientInfo.Client
		}
	}
	return nil
}

// GetQRChannel starts a fresh session for the phone number and returns its
// pairing channel
func (cm *ClientManager) GetQRChannel(phoneNumber string) (<-chan whatsmeow.QRChannelItem, error) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if clientInfo, exists := cm.clients[phoneNumber]; exists {
		clientInfo.Client.Disconnect()
		delete(cm.clients, phoneNumber)
	}

	if err := os.MkdirAll(cm.config.WhatsApp.StoreDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	sessionID := uuid.New().String()
	container, err := sqlstore.New("sqlite3", storeDSN(cm.config.WhatsApp.StoreDir, storeName(phoneNumber, sessionID)), waLog.Stdout("Database", "INFO", true))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deviceStore := container.NewDevice()
	store.DeviceProps.Os = proto.String(cm.config.WhatsApp.ClientName)

	client := whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "INFO", true))
	client.AddEventHandler(cm.handleWhatsAppEvent)

	// The channel must exist before connecting
	qrChan, err := client.GetQRChannel(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get QR channel: %w", err)
	}

	cm.clients[phoneNumber] = &ClientInfo{
		UUID:        sessionID,
		PhoneNumber: phoneNumber,
		Client:      client,
		Store:       deviceStore,
	}

	go func() {
		if err := client.Connect(); err != nil {
			cm.logger.Error("Failed to connect client",
				zap.String("phoneNumber", phoneNumber),
				zap.Error(err))
			return
		}

		cm.logger.Info("Client connected successfully",
			zap.String("phoneNumber", phoneNumber))
	}()

	return qrChan, nil
}

// Disconnect closes a specific WhatsApp connection
func (cm *ClientManager) Disconnect(phoneNumber string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	clientInfo, exists := cm.clients[phoneNumber]
	if !exists {
		return fmt.Errorf("client not found for phone number: %s", phoneNumber)
	}

	clientInfo.Client.Disconnect()
	delete(cm.clients, phoneNumber)
	return nil
}

// DisconnectAll closes all WhatsApp connections
func (cm *ClientManager) DisconnectAll() {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	for phoneNumber, clientInfo := range cm.clients {
		if clientInfo.Client != nil {
			clientInfo.Client.Disconnect()
			cm.logger.Info("Disconnected client", zap.String("phoneNumber", phoneNumber))
		}
	}

	cm.clients = make(map[string]*ClientInfo)
}

// IsLoggedIn checks if a client is logged in
func (cm *ClientManager) IsLoggedIn(phoneNumber string) (bool, error) {
	client, exists := cm.GetClient(phoneNumber)
	if !exists {
		return false, fmt.Errorf("client not found for phone number: %s", phoneNumber)
	}

	return client.IsLoggedIn(), nil
}

// SendMessage sends a text message through the client bound to phoneNumber,
// falling back to any connected client
func (cm *ClientManager) SendMessage(phoneNumber, recipient, message string) (string, error) {
	client, exists := cm.GetClient(phoneNumber)
	if !exists {
		client = cm.anyClient()
	}
	if client == nil {
		return "", fmt.Errorf("no WhatsApp client available for %s", phoneNumber)
	}

	recipientJID, err := parseJID(recipient)
	if err != nil {
		return "", err
	}

	return sendText(client, recipientJID, message)
}

func sendText(client *whatsmeow.Client, to waTypes.JID, message string) (string, error) {
	msg := &waE2E.Message{
		Conversation: proto.String(message),
	}

	response, err := client.SendMessage(context.Background(), to, msg)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	return response.ID, nil
}

// handleWhatsAppEvent processes incoming WhatsApp events
func (cm *ClientManager) handleWhatsAppEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		// Commands may run a whole turn
		go cm.handleIncomingMessage(v)
	case *events.Connected:
		cm.logger.Info("WhatsApp client connected")
	case *events.Disconnected:
		cm.logger.Info("WhatsApp client disconnected")
	case *events.LoggedOut:
		cm.logger.Info("WhatsApp client logged out")
	}
}

// handleIncomingMessage processes incoming WhatsApp messages
func (cm *ClientManager) handleIncomingMessage(message *events.Message) {
	if message.Info.MessageSource.IsFromMe {
		return
	}

	content := message.Message.GetConversation()
	if content == "" {
		content = message.Message.GetExtendedTextMessage().GetText()
	}
	if content == "" {
		return
	}

	// Group messages need the '/ ' prefix
	if message.Info.Chat.Server == waTypes.GroupServer {
		if !strings.HasPrefix(content, "/ ") {
			return
		}
		content = "/" + strings.TrimPrefix(content, "/ ")
	} else if !strings.HasPrefix(content, "/") {
		return
	}

	sender := message.Info.Sender.User
	if !cm.isProphet(sender) {
		cm.logger.Debug("Ignoring message from non-prophet", zap.String("sender", sender))
		return
	}

	cm.logger.Debug("Received message",
		zap.String("content", content),
		zap.String("sender", sender),
		zap.String("chat", message.Info.Chat.User))

	response := cm.processCommand(sender, content)
	if response == "" {
		return
	}

	client := cm.anyClient()
	if client == nil {
		cm.logger.Error("No client available to send response")
		return
	}

	if _, err := sendText(client, message.Info.Chat, response); err != nil {
		cm.logger.Error("Failed to send response",
			zap.String("sender", sender),
			zap.Error(err))
	}
}

// isProphet reports whether sender may speak for the god. An empty prophet
// list admits everyone.
func (cm *ClientManager) isProphet(sender string) bool {
	if len(cm.config.WhatsApp.Prophets) == 0 {
		return true
	}
	for _, prophet := range cm.config.WhatsApp.Prophets {
		if strings.TrimPrefix(prophet, "+") == sender {
			return true
		}
	}
	return false
}

// processCommand handles prophet commands and returns the reply
func (cm *ClientManager) processCommand(sender, command string) string {
	command = cleanCommand(command)

	if !strings.HasPrefix(command, "/") {
		return "Commands start with '/'. Send */help* to see what you may ask."
	}
	command = strings.TrimPrefix(command, "/")

	name, arg, _ := strings.Cut(command, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "help", "ajuda":
		return cm.formatter.FormatHelpMessage()
	case "status":
		return cm.formatter.FormatStatusMessage(cm.worldManager.Snapshot())
	case "petition":
		return cm.handlePetitionCommand()
	case "decree":
		return cm.handleDecreeCommand(sender, arg)
	case "silence":
		return cm.handleAnswerCommand(sender, -1)
	case "a", "b", "c", "d":
		return cm.handleAnswerCommand(sender, int(name[0]-'a'))
	}

	return "Unknown command. Send */help* to see what you may ask."
}

// handleDecreeCommand queues a decree for the next turn
func (cm *ClientManager) handleDecreeCommand(sender, text string) string {
	if text == "" {
		return "A decree needs words. Send */decree [your words]*"
	}

	if err := cm.worldManager.Enqueue(context.Background(), text); err != nil {
		cm.logger.Error("Failed to queue decree",
			zap.String("sender", sender),
			zap.Error(err))
		return fmt.Sprintf("The heavens did not hear you: %v", err)
	}

	cm.logger.Info("Decree queued", zap.String("sender", sender))
	return "📜 Your decree is heard. It will shape the coming years."
}

// handlePetitionCommand shows the open petition, if any
func (cm *ClientManager) handlePetitionCommand() string {
	pd := cm.worldManager.Snapshot().PendingDecision
	if pd == nil {
		return "No petition awaits your answer."
	}
	return game.FormatPetition(pd)
}

// handleAnswerCommand answers the open petition with the option at index,
// or with silence when index is negative
func (cm *ClientManager) handleAnswerCommand(sender string, index int) string {
	pd := cm.worldManager.Snapshot().PendingDecision
	if pd == nil {
		return "No petition awaits your answer."
	}

	var optionID *string
	if index >= 0 {
		if index >= len(pd.Options) {
			return fmt.Sprintf("The petition has only %d options.", len(pd.Options))
		}
		id := pd.Options[index].ID
		optionID = &id
	}

	ctx, cancel := context.WithTimeout(context.Background(), answerTimeout)
	defer cancel()

	err := cm.worldManager.Decide(ctx, optionID)
	switch {
	case err == nil:
	case errors.Is(err, game.ErrNoPendingDecision):
		return "The petition has already been answered."
	case errors.Is(err, game.ErrDecisionInProgress), errors.Is(err, game.ErrTurnInFlight):
		return "Another answer is already descending. Be patient."
	default:
		cm.logger.Error("Failed to answer petition",
			zap.String("sender", sender),
			zap.String("decision_id", pd.ID),
			zap.Error(err))
		return fmt.Sprintf("The heavens are clouded: %v", err)
	}

	cm.logger.Info("Petition answered",
		zap.String("sender", sender),
		zap.String("decision_id", pd.ID),
		zap.Bool("silence", optionID == nil))

	if optionID == nil {
		return fmt.Sprintf("🤫 You kept silent before %s.", pd.SenderName)
	}
	return fmt.Sprintf("⚡ Your will is done: %s", pd.Options[index].Text)
}

// cleanCommand normalizes the command word and keeps the rest verbatim
func cleanCommand(command string) string {
	command = strings.TrimSpace(command)
	name, rest, found := strings.Cut(command, " ")
	name = strings.ToLower(name)
	if !found {
		return name
	}
	return name + " " + strings.TrimSpace(rest)
}

// parseJID converts a string to a WhatsApp JID
func parseJID(jidString string) (waTypes.JID, error) {
	jidString = strings.TrimPrefix(jidString, "+")
	if !strings.ContainsRune(jidString, '@') {
		jidString = jidString + "@" + waTypes.DefaultUserServer
	}

	return waTypes.ParseJID(jidString)
}

func storeName(phoneNumber, sessionID string) string {
	return fmt.Sprintf("store_%s_%s.db", phoneNumber, sessionID)
}

// parseStoreName splits store_<phone>_<session>.db
func parseStoreName(name string) (phoneNumber, sessionID string, ok bool) {
	if !strings.HasPrefix(name, "store_") || !strings.HasSuffix(name, ".db") {
		return "", "", false
	}
	parts := strings.SplitN(strings.TrimSuffix(strings.TrimPrefix(name, "store_"), ".db"), "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func storeDSN(dir, name string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(dir, name))
}
