// Package pipeline processes inbound webhook deliveries end to end:
// signature verification, payload normalization, conversation resolution,
// context assembly, response generation, persistence, and outbound delivery.
package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/botdesk/botdesk/internal/agents"
	"github.com/botdesk/botdesk/internal/channels"
	"github.com/botdesk/botdesk/internal/config"
	"github.com/botdesk/botdesk/internal/conversation"
	"github.com/botdesk/botdesk/internal/events"
	"github.com/botdesk/botdesk/internal/knowledge"
	"github.com/botdesk/botdesk/internal/llm"
	"github.com/botdesk/botdesk/internal/memory"
	"github.com/botdesk/botdesk/internal/message"
	"github.com/botdesk/botdesk/internal/platform"
)

// ChannelStore loads channel registrations.
type ChannelStore interface {
	GetByID(ctx context.Context, id string) (channels.Channel, error)
}

// AgentStore loads agent configurations.
type AgentStore interface {
	GetByID(ctx context.Context, id string) (agents.Agent, error)
}

// Resolver maps a sender identity to its active conversation.
type Resolver interface {
	Resolve(ctx context.Context, ch channels.Channel, msg platform.InboundMessage) (conversation.Conversation, error)
}

// MessageStore persists turns and reads recent history.
type MessageStore interface {
	message.Writer
	ListLatest(ctx context.Context, conversationID string, limit int) ([]message.Message, error)
}

// Toucher bumps a conversation's activity timestamp. Failures are
// fire-and-forget.
type Toucher interface {
	Touch(ctx context.Context, id string) error
}

// PassageRetriever fetches knowledge passages, degrading to none on failure.
type PassageRetriever interface {
	Retrieve(ctx context.Context, tenantID string, documentIDs []string, query string) []knowledge.Passage
}

// Generator produces a completion for an agent given the composed prompt and
// history.
type Generator interface {
	Generate(ctx context.Context, agent agents.Agent, system string, history []llm.Message) (llm.Result, error)
}

// Publisher fans conversation lifecycle events out to dashboard subscribers.
type Publisher interface {
	Publish(event events.Event)
}

// SelectorGenerator adapts llm.Selector to the Generator interface.
type SelectorGenerator struct {
	Selector *llm.Selector
}

// Generate resolves the agent's provider settings and runs the completion.
func (g *SelectorGenerator) Generate(ctx context.Context, agent agents.Agent, system string, history []llm.Message) (llm.Result, error) {
	params, err := g.Selector.Resolve(agent.Provider, agent.Model, agent.Temperature, agent.MaxTokens)
	if err != nil {
		return llm.Result{}, err
	}
	return params.Provider.Generate(ctx, llm.Request{
		Model:       params.Model,
		System:      system,
		Messages:    history,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	})
}

// Result is the outcome of processing one normalized message. Err is set
// when the message failed; its siblings from the same delivery are processed
// regardless.
type Result struct {
	Inbound        platform.InboundMessage
	ConversationID string
	Reply          string
	Skipped        bool
	Err            error
}

// Pipeline is the inbound message processor. All collaborators are injected.
type Pipeline struct {
	logger    *slog.Logger
	effects   *slog.Logger
	registry  *platform.Registry
	channels  ChannelStore
	agents    AgentStore
	resolver  Resolver
	messages  MessageStore
	toucher   Toucher
	publisher Publisher
	cache     memory.ConversationCache
	retriever PassageRetriever
	generator Generator
	dedup     *Dedup
	cfg       config.PipelineConfig
}

// New creates a pipeline. toucher, publisher, cache, and retriever may be
// nil; the corresponding steps then degrade (no activity bump, no event
// fan-out, no warm window reuse, no retrieval).
func New(
	log *slog.Logger,
	registry *platform.Registry,
	channelStore ChannelStore,
	agentStore AgentStore,
	resolver Resolver,
	messageStore MessageStore,
	toucher Toucher,
	publisher Publisher,
	cache memory.ConversationCache,
	retriever PassageRetriever,
	generator Generator,
	cfg config.PipelineConfig,
) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = config.DefaultHistoryWindow
	}
	if cfg.HistoryBudget <= 0 {
		cfg.HistoryBudget = config.DefaultHistoryBudget
	}
	return &Pipeline{
		logger:    log.With(slog.String("service", "pipeline")),
		effects:   log.With(slog.String("service", "pipeline"), slog.String("log", "side_effects")),
		registry:  registry,
		channels:  channelStore,
		agents:    agentStore,
		resolver:  resolver,
		messages:  messageStore,
		toucher:   toucher,
		publisher: publisher,
		cache:     cache,
		retriever: retriever,
		generator: generator,
		dedup:     NewDedup(0),
		cfg:       cfg,
	}
}

// ProcessInbound handles one webhook delivery for a channel. A signature
// failure or malformed payload is terminal for the whole delivery; failures
// of individual normalized messages are captured per message so their batch
// siblings still process. A receipt-only payload returns no results and no
// error.
func (p *Pipeline) ProcessInbound(ctx context.Context, platformTag, channelID string, body []byte, signature string) ([]Result, error) {
	plat, err := platform.Parse(platformTag)
	if err != nil {
		return nil, err
	}
	ch, err := p.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, &conversation.ConfigurationError{ChannelID: channelID, Reason: "unknown channel"}
	}
	if ch.Platform != plat {
		return nil, &conversation.ConfigurationError{ChannelID: channelID, Reason: "platform mismatch"}
	}
	adapter, ok := p.registry.Get(plat)
	if !ok {
		return nil, &conversation.ConfigurationError{ChannelID: ch.ID, Reason: "no adapter registered for " + plat.String()}
	}
	if !adapter.VerifySignature(body, signature, ch.Secret) {
		return nil, &AuthenticationError{Platform: plat.String(), ChannelID: ch.ID}
	}
	inbound, err := adapter.ParsePayload(body)
	if err != nil {
		return nil, err
	}
	if len(inbound) == 0 {
		return nil, nil
	}

	results := make([]Result, 0, len(inbound))
	for _, msg := range inbound {
		result := p.processOne(ctx, ch, adapter, msg)
		if result.Err != nil {
			// Platform redelivery is the only retry mechanism; forget the id
			// so the redelivered message gets another attempt.
			p.dedup.Forget(ch.ID, msg.ExternalMessageID)
			p.logger.Error("message processing failed",
				slog.String("platform", plat.String()),
				slog.String("channel_id", ch.ID),
				slog.String("external_message_id", msg.ExternalMessageID),
				slog.Any("error", result.Err))
		}
		results = append(results, result)
	}
	return results, nil
}

// ProcessRequest is one webhook delivery queued for batch processing.
type ProcessRequest struct {
	Platform  string
	ChannelID string
	Body      []byte
	Signature string
}

// ProcessBatch processes several deliveries sequentially. A delivery-level
// failure is recorded as a single failed Result carrying no inbound message,
// so one bad delivery never blocks the rest of the batch.
func (p *Pipeline) ProcessBatch(ctx context.Context, requests []ProcessRequest) []Result {
	var results []Result
	for _, req := range requests {
		processed, err := p.ProcessInbound(ctx, req.Platform, req.ChannelID, req.Body, req.Signature)
		if err != nil {
			results = append(results, Result{Err: err})
			continue
		}
		results = append(results, processed...)
	}
	return results
}

func (p *Pipeline) processOne(ctx context.Context, ch channels.Channel, adapter platform.Adapter, msg platform.InboundMessage) Result {
	result := Result{Inbound: msg}

	if p.dedup.Seen(ch.ID, msg.ExternalMessageID) {
		p.logger.Info("skipping redelivered message",
			slog.String("channel_id", ch.ID),
			slog.String("external_message_id", msg.ExternalMessageID))
		result.Skipped = true
		return result
	}

	conv, err := p.resolver.Resolve(ctx, ch, msg)
	if err != nil {
		result.Err = err
		return result
	}
	result.ConversationID = conv.ID

	agent, err := p.agents.GetByID(ctx, conv.AgentID)
	if err != nil {
		result.Err = &conversation.ConfigurationError{ChannelID: ch.ID, Reason: "agent not found"}
		return result
	}

	// A cold window is rebuilt from durable history before the new turn is
	// appended; otherwise the append would create a one-turn window and the
	// prior context would never be read back.
	if err := p.warmWindow(ctx, conv.ID); err != nil {
		result.Err = err
		return result
	}

	// The customer turn is durable before generation starts; a provider
	// failure must never lose what the customer said.
	if _, err := p.messages.Persist(ctx, message.PersistInput{
		ConversationID: conv.ID,
		Sender:         message.SenderCustomer,
		Content:        msg.Text,
		Metadata:       inboundMetadata(msg),
	}); err != nil {
		result.Err = err
		return result
	}
	p.appendTurn(ctx, conv.ID, memory.RoleCustomer, msg.Text)

	history, err := p.assembleHistory(ctx, conv.ID)
	if err != nil {
		result.Err = err
		return result
	}
	passages := p.retrievePassages(ctx, conv, agent, msg.Text)
	system := ComposeSystemPrompt(agent, conv, passages)

	generated, err := p.generator.Generate(ctx, agent, system, history)
	if err != nil {
		result.Err = err
		return result
	}
	reply := strings.TrimSpace(generated.Text)
	result.Reply = reply

	if _, err := p.messages.Persist(ctx, message.PersistInput{
		ConversationID: conv.ID,
		Sender:         message.SenderAgent,
		Content:        reply,
		Metadata: map[string]any{
			"model":         generated.Model,
			"input_tokens":  generated.Usage.InputTokens,
			"output_tokens": generated.Usage.OutputTokens,
		},
	}); err != nil {
		result.Err = err
		return result
	}
	p.appendTurn(ctx, conv.ID, memory.RoleAgent, reply)

	if p.toucher != nil {
		if err := p.toucher.Touch(ctx, conv.ID); err != nil {
			p.effects.Warn("touch conversation failed",
				slog.String("conversation_id", conv.ID), slog.Any("error", err))
		}
	}
	if p.publisher != nil {
		p.publisher.Publish(events.Event{
			Type:           events.TypeConversationUpdated,
			TenantID:       conv.TenantID,
			ConversationID: conv.ID,
		})
	}

	if err := adapter.SendReply(ctx, ch.Credentials, msg.SenderID, reply); err != nil {
		p.effects.Error("outbound delivery failed", slog.Any("error", &DeliveryError{
			Platform:  msg.Platform.String(),
			Recipient: msg.SenderID,
			Err:       err,
		}))
	}
	return result
}

// warmWindow seeds a cold cache window from durable storage. It must run
// before the current customer turn is persisted, so the durable read holds
// only prior history and the subsequent append does not duplicate the turn.
func (p *Pipeline) warmWindow(ctx context.Context, conversationID string) error {
	if p.cache == nil {
		return nil
	}
	if _, ok := p.cache.Window(ctx, conversationID); ok {
		return nil
	}
	turns, err := p.loadDurableTurns(ctx, conversationID)
	if err != nil {
		return err
	}
	p.cache.Warm(ctx, conversationID, turns)
	return nil
}

func (p *Pipeline) loadDurableTurns(ctx context.Context, conversationID string) ([]memory.Turn, error) {
	latest, err := p.messages.ListLatest(ctx, conversationID, p.cfg.HistoryWindow)
	if err != nil {
		return nil, err
	}
	turns := make([]memory.Turn, 0, len(latest))
	for _, m := range latest {
		turns = append(turns, memory.Turn{
			Role:      roleOf(m.Sender),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return turns, nil
}

// assembleHistory returns the dialogue window oldest-first, including the
// customer turn persisted just before. With a cache the window was warmed
// earlier in processOne; without one history comes straight from storage.
func (p *Pipeline) assembleHistory(ctx context.Context, conversationID string) ([]llm.Message, error) {
	var turns []memory.Turn
	if p.cache != nil {
		turns, _ = p.cache.Window(ctx, conversationID)
	} else {
		loaded, err := p.loadDurableTurns(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		turns = loaded
	}
	turns = memory.Trim(turns, p.cfg.HistoryWindow, p.cfg.HistoryBudget)

	history := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		role := llm.RoleUser
		if t.Role == memory.RoleAgent {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: t.Content})
	}
	return history, nil
}

func (p *Pipeline) retrievePassages(ctx context.Context, conv conversation.Conversation, agent agents.Agent, query string) []knowledge.Passage {
	if p.retriever == nil {
		return nil
	}
	return p.retriever.Retrieve(ctx, conv.TenantID, agent.DocumentIDs, query)
}

func (p *Pipeline) appendTurn(ctx context.Context, conversationID string, role memory.Role, content string) {
	if p.cache == nil {
		return
	}
	p.cache.Append(ctx, conversationID, memory.Turn{Role: role, Content: content})
}

func roleOf(sender message.Sender) memory.Role {
	if sender == message.SenderAgent {
		return memory.RoleAgent
	}
	return memory.RoleCustomer
}

func inboundMetadata(msg platform.InboundMessage) map[string]any {
	meta := map[string]any{
		"platform":            msg.Platform.String(),
		"external_message_id": msg.ExternalMessageID,
	}
	if msg.SenderName != "" {
		meta["sender_name"] = msg.SenderName
	}
	if len(msg.Attachments) > 0 {
		meta["attachments"] = msg.Attachments
	}
	return meta
}
