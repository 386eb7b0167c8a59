//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/medimind/medimind-api/internal/bootstrap"
	"github.com/medimind/medimind-api/internal/domain/analysis"
	"github.com/medimind/medimind-api/internal/domain/auth"
	"github.com/medimind/medimind-api/internal/domain/profile"
	"github.com/medimind/medimind-api/internal/domain/records"
	"github.com/medimind/medimind-api/internal/infra/config"
	"github.com/medimind/medimind-api/internal/infra/llm/gemini"
	httpiface "github.com/medimind/medimind-api/internal/interface/http"
	"github.com/medimind/medimind-api/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideAuthConfig,
		provideAnalysisConfig,
		provideProfileConfig,
		provideGeminiClient,
		provideUserDocument,
		provideAuthRepository,
		provideAnalysisRepository,
		provideProfileRepository,
		provideRecordsRepository,
		provideAuthCache,
		provideAvatarStorage,
		auth.NewService,
		analysis.NewService,
		profile.NewService,
		records.NewService,
		wire.Bind(new(analysis.GenClient), new(*gemini.Client)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
