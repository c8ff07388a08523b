// Package mocks provides gomock implementations of the internal/core ports.
//
// Regenerate after interface changes with:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	jobs := mocks.NewMockJobStore(ctrl)
//	jobs.EXPECT().GetByID(gomock.Any(), id).Return(job, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=task_repository_mock.go github.com/target/jobmatch/internal/core TaskRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_store_mock.go github.com/target/jobmatch/internal/core JobStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=stage_claim_repository_mock.go github.com/target/jobmatch/internal/core StageClaimRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=user_repository_mock.go github.com/target/jobmatch/internal/core UserRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reaper_repository_mock.go github.com/target/jobmatch/internal/core ReaperRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=artifact_store_mock.go github.com/target/jobmatch/internal/core ArtifactStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=posting_source_mock.go github.com/target/jobmatch/internal/core PostingSource
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=scorer_mock.go github.com/target/jobmatch/internal/core Scorer
