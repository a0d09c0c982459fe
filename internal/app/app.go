// Package app wires configuration, integrations and the bot together for the
// Lambda and server binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/jomei/notionapi"

	"wa-bot/handler"
	"wa-bot/internal/config"
	"wa-bot/internal/conversation"
	"wa-bot/internal/integrations/notion"
	"wa-bot/internal/integrations/paramstore"
	"wa-bot/internal/integrations/veryfi"
	"wa-bot/internal/integrations/whatsapp"
	"wa-bot/internal/repository"
	"wa-bot/internal/usecase"
)

// App is the wired bot.
type App struct {
	Bot       *usecase.Bot
	Handler   *handler.Handler
	Messenger *whatsapp.Client
}

// AWSLoader returns the AWS SDK configuration. It is only called when SSM or
// DynamoDB is in use.
type AWSLoader func(ctx context.Context) (aws.Config, error)

// DefaultAWS loads the shared AWS configuration from the environment.
func DefaultAWS(ctx context.Context) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx)
}

type stores struct {
	sessions conversation.Store
	budgets  usecase.BudgetStore
}

// New builds every client from cfg.
func New(ctx context.Context, cfg *config.Config, loadAWS AWSLoader) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if loadAWS == nil {
		loadAWS = DefaultAWS
	}

	var awsCfg *aws.Config
	if cfg.UseSSM || cfg.TableName != "" {
		c, err := loadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: load AWS config: %w", err)
		}
		awsCfg = &c
	}

	secrets, err := secretsGetter(cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	st, err := newStores(cfg, awsCfg)
	if err != nil {
		return nil, err
	}

	notionToken, err := paramstore.Token(ctx, secrets, cfg.ParamPrefix+"/notion-token")
	if err != nil {
		return nil, fmt.Errorf("app: read Notion token: %w", err)
	}
	nc := notionapi.NewClient(notionapi.Token(notionToken))
	notionClient, err := notion.New(nc.Database, nc.Page, notion.Databases{
		Expenses:  cfg.Notion.ExpensesDB,
		PreOrders: cfg.Notion.PreOrdersDB,
		Wishlist:  cfg.Notion.WishlistDB,
	}, notion.WithLocation(cfg.Timezone))
	if err != nil {
		return nil, fmt.Errorf("app: create Notion client: %w", err)
	}

	veryfiClient, err := veryfi.NewClient(secrets, cfg.ParamPrefix)
	if err != nil {
		return nil, fmt.Errorf("app: create Veryfi client: %w", err)
	}
	messenger, err := whatsapp.NewClient(secrets, cfg.ParamPrefix)
	if err != nil {
		return nil, fmt.Errorf("app: create WhatsApp client: %w", err)
	}

	bot, err := usecase.NewBot(usecase.Deps{
		Sessions:   st.sessions,
		Expenses:   notionClient,
		PreOrders:  notionClient,
		Wishlist:   notionClient,
		Budgets:    st.budgets,
		Receipts:   veryfiClient,
		Messenger:  messenger,
		Features:   cfg.Features,
		Allowlist:  cfg,
		Location:   cfg.Timezone,
		NotionLink: cfg.NotionLink,
	})
	if err != nil {
		return nil, fmt.Errorf("app: create bot: %w", err)
	}

	h, err := handler.NewHandler(bot, cfg.Webhook.VerifyToken, cfg.Webhook.AppSecret)
	if err != nil {
		return nil, fmt.Errorf("app: create handler: %w", err)
	}
	if cfg.Webhook.AppSecret == "" {
		slog.Warn("WHATSAPP_APP_SECRET not set, webhook signatures are not checked")
	}

	return &App{Bot: bot, Handler: h, Messenger: messenger}, nil
}

func secretsGetter(cfg *config.Config, awsCfg *aws.Config) (paramstore.Getter, error) {
	if !cfg.UseSSM {
		return paramstore.Static(cfg.LocalSecrets()), nil
	}
	c, err := paramstore.New(awsssm.NewFromConfig(*awsCfg))
	if err != nil {
		return nil, fmt.Errorf("app: create SSM client: %w", err)
	}
	return c, nil
}

func newStores(cfg *config.Config, awsCfg *aws.Config) (stores, error) {
	if cfg.TableName == "" {
		slog.Info("DYNAMODB_TABLE not set, keeping conversations and budgets in memory")
		return stores{sessions: conversation.NewMemoryStore(), budgets: repository.NewMemoryBudgets()}, nil
	}
	c, err := repository.New(awsdynamodb.NewFromConfig(*awsCfg), cfg.TableName)
	if err != nil {
		return stores{}, fmt.Errorf("app: create state client: %w", err)
	}
	return stores{sessions: c, budgets: c}, nil
}
