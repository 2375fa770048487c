// test/mocks/mocks.go

// Package mocks contains generated mocks for the application's interfaces.
// To regenerate mocks, run `make mocks` from the root directory.
package mocks

//go:generate mockgen -source=../../internal/core/ports/document_repository.go -destination=document_repository_mock.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/storage.go -destination=backup_storage_mock.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/tasks.go -destination=task_enqueuer_mock.go -package=mocks
