package container

import (
	"github.com/xilian/asset-registry/cmd/assetd/repository"
	"github.com/xilian/asset-registry/cmd/assetd/service"
	"github.com/xilian/asset-registry/common/bootstrap"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Repositories
	NodeRepo     *repository.NodeRepository
	SequenceRepo *repository.SequenceRepository
	RuleRepo     *repository.RuleRepository

	// Services
	Registry  *service.RuleRegistry
	Resolver  *service.CategoryResolver
	Allocator *service.SequenceAllocator
	Generator *service.CodeGenerator
	Hierarchy *service.Hierarchy
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	// Initialize repositories
	nodeRepo := repository.NewNodeRepository(components.DB)
	sequenceRepo := repository.NewSequenceRepository(components.DB)
	ruleRepo := repository.NewRuleRepository(components.DB)

	// Initialize services (bottom-up: dependencies first)
	guards := service.NewGuardEvaluator()

	registry := service.NewRuleRegistry(
		ruleRepo,
		components.Cache,
		cfg.Cache.DefaultTTL,
		guards,
		components.Logger,
	)

	resolver := service.NewCategoryResolver(
		components.Redis,
		cfg.Dictionary.KeyPrefix,
		components.Logger,
	)

	allocator := service.NewSequenceAllocator(
		sequenceRepo,
		cfg.Allocator.MaxRetries,
		cfg.Allocator.RetryDelay,
		components.Logger,
	)

	generator := service.NewCodeGenerator(
		registry,
		resolver,
		allocator,
		guards,
		components.Logger,
	)

	hierarchy := service.NewHierarchy(
		nodeRepo,
		generator,
		components.Logger,
	)

	return &Container{
		Components:   components,
		NodeRepo:     nodeRepo,
		SequenceRepo: sequenceRepo,
		RuleRepo:     ruleRepo,
		Registry:     registry,
		Resolver:     resolver,
		Allocator:    allocator,
		Generator:    generator,
		Hierarchy:    hierarchy,
	}, nil
}
