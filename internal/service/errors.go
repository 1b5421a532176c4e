package service

import (
	"errors"

	"github.com/shenikar/civic_reporting_system/internal/lifecycle"
)

// Классы ошибок, по которым обработчики выбирают HTTP-статус
var (
	// ErrNotFound - обращение или пользователь не существует
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition - переход запрещен таблицей статусов
	ErrInvalidTransition = lifecycle.ErrInvalidTransition
	// ErrValidation - не заполнены обязательные поля
	ErrValidation = errors.New("validation failed")
	// ErrConflict - запись изменилась между чтением и записью, либо нарушена уникальность
	ErrConflict = errors.New("conflict")
	// ErrNotReloaded - запись зафиксирована, но перечитать ее не удалось
	ErrNotReloaded = errors.New("committed but not reloaded")
)
