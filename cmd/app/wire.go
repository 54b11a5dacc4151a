//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/docchat/internal/bootstrap"
	"github.com/yanqian/docchat/internal/domain/chat"
	"github.com/yanqian/docchat/internal/domain/docchat"
	"github.com/yanqian/docchat/internal/domain/summarizer"
	"github.com/yanqian/docchat/internal/infra/config"
	"github.com/yanqian/docchat/internal/infra/extract"
	"github.com/yanqian/docchat/internal/infra/tokenizer"
	httpiface "github.com/yanqian/docchat/internal/interface/http"
	"github.com/yanqian/docchat/pkg/logger"
	"github.com/yanqian/docchat/pkg/metrics"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		metrics.NewRecorder,
		provideSummaryConfig,
		provideChatConfig,
		provideDocChatConfig,
		provideGenerator,
		provideSummaryGenerator,
		provideChatGenerator,
		provideTokenCounter,
		provideSessionStore,
		provideLocker,
		provideClock,
		extract.New,
		summarizer.NewService,
		chat.NewService,
		docchat.NewService,
		wire.Bind(new(summarizer.TokenCounter), new(*tokenizer.Counter)),
		wire.Bind(new(chat.TokenCounter), new(*tokenizer.Counter)),
		wire.Bind(new(docchat.Extractor), new(*extract.Extractor)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
