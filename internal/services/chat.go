package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/intec-ai/intec-backend/internal/daterange"
	"github.com/intec-ai/intec-backend/internal/logger"
	"github.com/intec-ai/intec-backend/internal/repos"
	"github.com/intec-ai/intec-backend/internal/requestdata"
	"github.com/intec-ai/intec-backend/internal/socket"
	"github.com/intec-ai/intec-backend/internal/types"
)

const (
	chatHistoryLimit = 10

	emptyPipelineAnswer = "Desculpe, não consegui entender sua solicitação para consultar os dados. Por favor, reformule."
	processMessageError = "Erro ao processar mensagem"
)

var ErrChatForbidden = errors.New("you do not have access to this chat")

type SendMessageResult struct {
	Messages []*types.Message `json:"messages"`
}

// ChatService runs the conversational analytics turn: resolve or create
// the chat, load bounded history, generate the aggregation query,
// resolve date placeholders, execute, humanize, and persist the
// user/assistant message pair atomically.
type ChatService interface {
	SendMessage(ctx context.Context, chatID *uuid.UUID, content string) (*SendMessageResult, error)
	GetChats(ctx context.Context) ([]*types.Chat, error)
	GetMessagesByChat(ctx context.Context, chatID uuid.UUID) ([]*types.Message, error)
}

type chatService struct {
	db              *gorm.DB
	log             *logger.Logger
	chatRepo        repos.ChatRepo
	messageRepo     repos.MessageRepo
	transactionRepo repos.TransactionRepo
	iaService       OpenAiService
	hub             *socket.Hub
	now             func() time.Time
}

func NewChatService(
	db *gorm.DB,
	log *logger.Logger,
	chatRepo repos.ChatRepo,
	messageRepo repos.MessageRepo,
	transactionRepo repos.TransactionRepo,
	iaService OpenAiService,
	hub *socket.Hub,
) ChatService {
	return &chatService{
		db:              db,
		log:             log.With("service", "ChatService"),
		chatRepo:        chatRepo,
		messageRepo:     messageRepo,
		transactionRepo: transactionRepo,
		iaService:       iaService,
		hub:             hub,
		now:             time.Now,
	}
}

// runInTx keeps the whole turn inside one transaction: rollback on any
// returned error or panic, commit otherwise.
func (cs *chatService) runInTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if cs.db == nil {
		return fn(nil)
	}
	return cs.db.WithContext(ctx).Transaction(fn)
}

func (cs *chatService) SendMessage(ctx context.Context, chatID *uuid.UUID, content string) (*SendMessageResult, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, fmt.Errorf("no authenticated user in request context")
	}
	userID := rd.UserID

	var result *SendMessageResult
	err := cs.runInTx(ctx, func(tx *gorm.DB) error {
		resolvedChatID := uuid.Nil
		var chatHistory []types.ChatMessage

		if chatID == nil || *chatID == uuid.Nil {
			title, err := cs.iaService.GenerateTitle(ctx, content)
			if err != nil {
				return fmt.Errorf("failed to generate chat title: %w", err)
			}
			chat, err := cs.chatRepo.CreateChat(ctx, tx, &types.Chat{Title: title, UserID: userID})
			if err != nil {
				return err
			}
			resolvedChatID = chat.ID
			cs.log.Info("new chat created", "chatID", resolvedChatID)
		} else {
			resolvedChatID = *chatID
			if _, err := cs.chatRepo.GetByID(ctx, tx, resolvedChatID, userID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrChatForbidden
				}
				return err
			}
			msgs, err := cs.messageRepo.GetRecentByChat(ctx, tx, resolvedChatID, userID, chatHistoryLimit)
			if err != nil {
				return err
			}
			chatHistory = projectHistory(msgs)
			cs.log.Info("chat history loaded", "chatID", resolvedChatID, "messages", len(chatHistory))
		}

		// Defensive invariant, not an expected path.
		if resolvedChatID == uuid.Nil {
			return fmt.Errorf("chat ID could not be resolved")
		}

		cs.log.Info("step 1: generating query for message", "chatID", resolvedChatID)
		intent, err := cs.iaService.GenerateQuery(ctx, content, chatHistory)
		if err != nil {
			return err
		}

		var iaAnswerContent string
		switch intent.Intent {
		case IntentClarificationNeeded:
			iaAnswerContent = intent.Message
			cs.log.Info("step 1: model requested clarification", "message", iaAnswerContent)
		case IntentError:
			iaAnswerContent = intent.Message
			cs.log.Error("step 1: model query generation failed", "message", iaAnswerContent)
		default:
			if len(intent.MongoQueryPipeline) == 0 {
				iaAnswerContent = emptyPipelineAnswer
				cs.log.Warn("step 1: model returned a valid intent but no pipeline", "intent", intent.Intent)
				break
			}

			cs.log.Info("step 2: resolving date placeholders in pipeline")
			executablePipeline := daterange.InjectDates(intent.MongoQueryPipeline, cs.now().UTC())

			cs.log.Info("step 2: executing aggregation pipeline", "pipeline", executablePipeline)
			queryResult, err := cs.transactionRepo.Aggregate(ctx, executablePipeline)
			if err != nil {
				return err
			}
			cs.log.Debug("step 2: aggregation result", "result", queryResult)

			cs.log.Info("step 3: humanizing query result")
			iaAnswerContent = cs.iaService.HumanizeResponse(ctx, content, queryResult, chatHistory)
		}

		msgs, err := cs.messageRepo.CreateMessages(ctx, tx, []*types.Message{
			{ChatID: resolvedChatID, UserID: userID, Role: types.MessageRoleUser, Content: content},
			{ChatID: resolvedChatID, UserID: userID, Role: types.MessageRoleIA, Content: iaAnswerContent},
		})
		if err != nil {
			return err
		}
		if err := cs.chatRepo.TouchUpdatedAt(ctx, tx, resolvedChatID); err != nil {
			return err
		}

		result = &SendMessageResult{Messages: msgs}
		return nil
	})
	if err != nil {
		cs.log.Error("message turn aborted, transaction rolled back", "error", err)
		if errors.Is(err, ErrChatForbidden) {
			return nil, ErrChatForbidden
		}
		return nil, errors.New(processMessageError)
	}

	cs.broadcastPair(ctx, result)
	return result, nil
}

func (cs *chatService) GetChats(ctx context.Context) ([]*types.Chat, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, fmt.Errorf("no authenticated user in request context")
	}
	return cs.chatRepo.GetAllByUser(ctx, nil, rd.UserID)
}

func (cs *chatService) GetMessagesByChat(ctx context.Context, chatID uuid.UUID) ([]*types.Message, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, fmt.Errorf("no authenticated user in request context")
	}
	if _, err := cs.chatRepo.GetByID(ctx, nil, chatID, rd.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatForbidden
		}
		return nil, err
	}
	return cs.messageRepo.GetByChatID(ctx, nil, chatID, rd.UserID)
}

// projectHistory maps stored messages to the role/content pairs the
// model consumes; persistence role "ia" becomes "assistant". Order is
// kept exactly as storage returned it (newest first).
func projectHistory(msgs []*types.Message) []types.ChatMessage {
	history := make([]types.ChatMessage, 0, len(msgs))
	for _, msg := range msgs {
		role := "user"
		if msg.Role == types.MessageRoleIA {
			role = "assistant"
		}
		history = append(history, types.ChatMessage{Role: role, Content: msg.Content})
	}
	return history
}

// broadcastPair pushes the committed pair to the owner's live sessions.
// Runs only after commit and is best-effort. The fan-out stays on the
// user channel: chats are single-owner, and a per-chat channel would
// let anyone holding the chat id listen in.
func (cs *chatService) broadcastPair(ctx context.Context, result *SendMessageResult) {
	if cs.hub == nil || result == nil || len(result.Messages) == 0 {
		return
	}
	userID := result.Messages[0].UserID
	payload := map[string]interface{}{
		"action":  "message_pair_created",
		"payload": result.Messages,
	}
	cs.hub.BroadcastGlobal(ctx, socket.Message{Channel: "user:" + userID.String(), Data: payload})
}
