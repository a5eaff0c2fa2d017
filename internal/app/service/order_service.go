package service

import (
	"errors"
	"fmt"
	"io"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/internal/app/repository"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const ordersSheet = "Orders"

type OrderPage struct {
	Orders  []model.Order `json:"orders"`
	Total   int64         `json:"total"`
	Page    int           `json:"page"`
	PerPage int           `json:"per_page"`
}

type OrderService interface {
	GetUserOrders(userID uint) ([]model.Order, error)
	GetOrderByID(userID uint, isStaff bool, orderID uint) (*model.Order, error)
	ListOrders(page, perPage int) (*OrderPage, error)
	ExportOrders(w io.Writer) error
}

type orderService struct {
	orderRepo repository.OrderRepository
}

func NewOrderService(orderRepo repository.OrderRepository) OrderService {
	return &orderService{orderRepo: orderRepo}
}

func (s *orderService) GetUserOrders(userID uint) ([]model.Order, error) {
	orders, err := s.orderRepo.FindByUserID(userID)
	if err != nil {
		logger.Error("Failed to fetch user orders", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return orders, nil
}

// GetOrderByID returns an order to its buyer or to staff; anyone else gets not found
func (s *orderService) GetOrderByID(userID uint, isStaff bool, orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if !isStaff && (order.UserID == nil || *order.UserID != userID) {
		logger.Warn("Order requested by non-owner", map[string]interface{}{
			"order_id": orderID,
			"user_id":  userID,
		})
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) ListOrders(page, perPage int) (*OrderPage, error) {
	page, perPage = normalizePage(page, perPage)
	orders, total, err := s.orderRepo.FindAll(perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	return &OrderPage{Orders: orders, Total: total, Page: page, PerPage: perPage}, nil
}

// ExportOrders writes every order line as an XLSX workbook
func (s *orderService) ExportOrders(w io.Writer) error {
	orders, _, err := s.orderRepo.FindAll(-1, -1)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ordersSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := []interface{}{"Order", "Date", "Email", "Paid", "Item", "Quantity", "Unit price", "Line total", "Order total"}
	if err := f.SetSheetRow(ordersSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := 2
	for _, order := range orders {
		for _, item := range order.Items {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			values := []interface{}{
				order.ID,
				order.CreatedAt.Format("2006-01-02 15:04"),
				order.CustomerEmail,
				order.Paid,
				item.Title,
				item.Quantity,
				item.UnitPrice.InexactFloat64(),
				item.LineTotal().InexactFloat64(),
				order.TotalAmount.InexactFloat64(),
			}
			if err := f.SetSheetRow(ordersSheet, cell, &values); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
			row++
		}
	}

	logger.Info("Orders exported", map[string]interface{}{
		"orders": len(orders),
		"rows":   row - 2,
	})
	return f.Write(w)
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}
