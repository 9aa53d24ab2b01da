package main

import (
	"context"
	"errors"
	"time"

	"github.com/glassline/internal/config"
	"github.com/glassline/internal/constants"
	"github.com/glassline/internal/logger"
	"github.com/glassline/internal/models"
	"github.com/glassline/internal/repository"
	"github.com/glassline/internal/service"
)

const sampleGlassOrderNumber = "GO-SEED-0001"

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer logger.Sync()
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, false); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	productionRepo := repository.NewProductionOrderRepository(models.DB)
	orderRepo := repository.NewGlassOrderRepository(models.DB)
	deliveryRepo := repository.NewGlassDeliveryRepository(models.DB)
	validationRepo := repository.NewGlassValidationRepository(models.DB)

	// 生产订单
	productionOrders := []models.ProductionOrder{
		{OrderNumber: "53472", Client: "Meier Fensterbau", Project: "Wohnanlage Nord", Status: "in_production"},
		{OrderNumber: "53473", Client: "Meier Fensterbau", Project: "Wohnanlage Nord", Status: "in_production"},
		{OrderNumber: "53480", Client: "Holzbau Kern", Project: "Schule Ost", Status: "planned"},
	}
	for i := range productionOrders {
		po := productionOrders[i]
		existing, err := productionRepo.GetByOrderNumber(po.OrderNumber)
		if err != nil {
			stdLog.Fatalf("Failed to load production order %s: %v", po.OrderNumber, err)
		}
		if existing != nil {
			stdLog.Printf("Production order already exists: %s", po.OrderNumber)
			continue
		}
		po.GlassOrderStatus = constants.GlassStatusNotOrdered
		if err := productionRepo.Create(&po); err != nil {
			stdLog.Printf("Failed to create production order %s: %v", po.OrderNumber, err)
			continue
		}
		stdLog.Printf("Created production order: %s", po.OrderNumber)
	}

	opts := service.GlassServiceOptions{TransactionTimeout: time.Duration(cfg.Matching.TransactionTimeoutSeconds) * time.Second}
	orderService := service.NewGlassOrderService(productionRepo, orderRepo, deliveryRepo, validationRepo, nil, opts)
	deliveryService := service.NewGlassDeliveryService(productionRepo, orderRepo, deliveryRepo, validationRepo, nil, opts)
	ctx := context.Background()

	// 采购批次
	expected := time.Now().AddDate(0, 0, 14)
	imported, err := orderService.ImportSupplierBatch(ctx, service.ImportGlassOrderInput{
		GlassOrderNumber:     sampleGlassOrderNumber,
		OrderDate:            time.Now(),
		Supplier:             "Glaswerk Süd",
		OrderedBy:            "seed",
		ExpectedDeliveryDate: &expected,
		Items: []service.GlassOrderItemInput{
			{OrderNumber: "53472", Position: "1", GlassType: "3-fach ISO", WidthMM: 600, HeightMM: 800, Quantity: 2},
			{OrderNumber: "53472", OrderSuffix: "A", Position: "2", GlassType: "3-fach ISO", WidthMM: 1200, HeightMM: 1400, Quantity: 1},
			{OrderNumber: "53473", Position: "1", GlassType: "VSG", WidthMM: 900, HeightMM: 2100, Quantity: 4},
		},
	}, false)
	var conflict *service.GlassOrderConflictError
	switch {
	case errors.As(err, &conflict):
		stdLog.Printf("Glass order already exists: %s", sampleGlassOrderNumber)
		return
	case err != nil:
		stdLog.Fatalf("Failed to import glass order: %v", err)
	}
	stdLog.Printf("Imported glass order %s (id=%d, panes=%d)", sampleGlassOrderNumber, imported.GlassOrderID, imported.TotalQuantity)

	// 到货批次：部分到货，另含一块无法匹配的玻璃
	delivered, err := deliveryService.ImportDeliveryBatch(ctx, service.ImportGlassDeliveryInput{
		RackNumber:          "R-101",
		SupplierOrderNumber: sampleGlassOrderNumber,
		DeliveryDate:        time.Now(),
		Items: []service.GlassDeliveryItemInput{
			{OrderNumber: "53472", Position: "1", WidthMM: 600, HeightMM: 800, Quantity: 2, SerialNumber: "SN-0001"},
			{OrderNumber: "53473", Position: "1", WidthMM: 900, HeightMM: 2100, Quantity: 1, SerialNumber: "SN-0002"},
			{OrderNumber: "53480", Position: "7", WidthMM: 450, HeightMM: 450, Quantity: 1, SerialNumber: "SN-0003"},
		},
	})
	if err != nil {
		stdLog.Fatalf("Failed to import glass delivery: %v", err)
	}
	stdLog.Printf("Imported glass delivery id=%d matched=%d conflict=%d unmatched=%d",
		delivered.GlassDeliveryID, delivered.Matched, delivered.Conflict, delivered.Unmatched)
}
