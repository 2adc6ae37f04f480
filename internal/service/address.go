// 文件路径: internal/service/address.go
// 模块说明: 用户收货与账单地址，同类型地址仅保留一个默认值。
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cliqshop/shop/internal/repository"
)

// AddressInput 描述地址字段。
type AddressInput struct {
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
	Type       repository.AddressType
	IsDefault  bool
}

// AddressService 管理用户地址。所有方法都校验地址归属。
type AddressService interface {
	ListByUser(ctx context.Context, userID int64) ([]*repository.Address, error)
	Get(ctx context.Context, userID, id int64) (*repository.Address, error)
	Create(ctx context.Context, userID int64, input AddressInput) (*repository.Address, error)
	Update(ctx context.Context, userID, id int64, input AddressInput) (*repository.Address, error)
	Delete(ctx context.Context, userID, id int64) error
	Default(ctx context.Context, userID int64, addrType repository.AddressType) (*repository.Address, error)
	SetDefault(ctx context.Context, userID, id int64) (*repository.Address, error)
}

// NewAddressService 组装地址服务。
func NewAddressService(store repository.Store) AddressService {
	return &addressService{store: store}
}

type addressService struct {
	store repository.Store
}

func (s *addressService) ListByUser(ctx context.Context, userID int64) ([]*repository.Address, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("address %w", errIncomplete)
	}
	return s.store.Addresses().ListByUser(ctx, userID)
}

func (s *addressService) Get(ctx context.Context, userID, id int64) (*repository.Address, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("address %w", errIncomplete)
	}
	return ownedAddress(ctx, s.store, userID, id)
}

func (s *addressService) Create(ctx context.Context, userID int64, input AddressInput) (*repository.Address, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("address %w", errIncomplete)
	}
	addr, err := validateAddress(input)
	if err != nil {
		return nil, err
	}
	addr.UserID = userID
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().FindByID(ctx, userID); err != nil {
			return err
		}
		count, err := tx.Addresses().CountByUserAndType(ctx, userID, addr.Type)
		if err != nil {
			return err
		}
		if count == 0 {
			addr.IsDefault = true
		}
		if addr.IsDefault {
			if err := tx.Addresses().ClearDefault(ctx, userID, addr.Type); err != nil {
				return err
			}
		}
		_, err = tx.Addresses().Create(ctx, addr)
		return err
	})
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return addr, nil
}

func (s *addressService) Update(ctx context.Context, userID, id int64, input AddressInput) (*repository.Address, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("address %w", errIncomplete)
	}
	next, err := validateAddress(input)
	if err != nil {
		return nil, err
	}
	var updated *repository.Address
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		addr, err := ownedAddress(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		typeChanged := addr.Type != next.Type
		addr.Street, addr.City, addr.State = next.Street, next.City, next.State
		addr.PostalCode, addr.Country, addr.Type = next.PostalCode, next.Country, next.Type
		if next.IsDefault && (!addr.IsDefault || typeChanged) {
			if err := tx.Addresses().ClearDefault(ctx, userID, addr.Type); err != nil {
				return err
			}
			addr.IsDefault = true
		} else if typeChanged && addr.IsDefault {
			// A default cannot carry over into a type that already has one.
			if _, err := tx.Addresses().FindDefault(ctx, userID, addr.Type); err == nil {
				addr.IsDefault = false
			}
		}
		if err := tx.Addresses().Update(ctx, addr); err != nil {
			return err
		}
		updated = addr
		return nil
	})
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return updated, nil
}

func (s *addressService) Delete(ctx context.Context, userID, id int64) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("address %w", errIncomplete)
	}
	return mapRepoErr(s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := ownedAddress(ctx, tx, userID, id); err != nil {
			return err
		}
		return tx.Addresses().Delete(ctx, id)
	}))
}

func (s *addressService) Default(ctx context.Context, userID int64, addrType repository.AddressType) (*repository.Address, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("address %w", errIncomplete)
	}
	if !addrType.Valid() {
		return nil, invalidf("unknown address type %q / 地址类型无效", addrType)
	}
	addr, err := s.store.Addresses().FindDefault(ctx, userID, addrType)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return addr, nil
}

func (s *addressService) SetDefault(ctx context.Context, userID, id int64) (*repository.Address, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("address %w", errIncomplete)
	}
	var result *repository.Address
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		addr, err := ownedAddress(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if err := tx.Addresses().ClearDefault(ctx, userID, addr.Type); err != nil {
			return err
		}
		if err := tx.Addresses().SetDefault(ctx, id, true); err != nil {
			return err
		}
		addr.IsDefault = true
		result = addr
		return nil
	})
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return result, nil
}

// ownedAddress loads an address and checks that userID owns it.
func ownedAddress(ctx context.Context, store repository.Store, userID, id int64) (*repository.Address, error) {
	addr, err := store.Addresses().FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if addr.UserID != userID {
		return nil, fmt.Errorf("%w: address %d belongs to another user / 无权访问该地址", ErrForbidden, id)
	}
	return addr, nil
}

func validateAddress(input AddressInput) (*repository.Address, error) {
	addr := &repository.Address{
		Street:     strings.TrimSpace(input.Street),
		City:       strings.TrimSpace(input.City),
		State:      strings.TrimSpace(input.State),
		PostalCode: strings.TrimSpace(input.PostalCode),
		Country:    strings.TrimSpace(input.Country),
		Type:       repository.AddressType(strings.ToUpper(strings.TrimSpace(string(input.Type)))),
		IsDefault:  input.IsDefault,
	}
	if addr.Type == "" {
		addr.Type = repository.AddressShipping
	}
	if !addr.Type.Valid() {
		return nil, invalidf("unknown address type %q / 地址类型无效", input.Type)
	}
	if addr.Street == "" || addr.City == "" || addr.PostalCode == "" || addr.Country == "" {
		return nil, invalidf("street, city, postal code and country are required / 街道、城市、邮编和国家不能为空")
	}
	return addr, nil
}
