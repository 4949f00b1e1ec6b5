package mocks

//go:generate mockgen -destination=./mock_cache.go -package=mocks github.com/rxtech-lab/argo-backfill/pkg/cache Cache
//go:generate mockgen -destination=./mock_provider.go -package=mocks github.com/rxtech-lab/argo-backfill/pkg/marketdata/provider Provider
//go:generate mockgen -destination=./mock_engine.go -package=mocks github.com/rxtech-lab/argo-backfill/internal/backfill/engine BackfillEngine
