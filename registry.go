package labjack

import (
	"errors"
	"fmt"
	"sync"
)

// Таблица устройств.
const (
	MaxDevices     = 8   // сколько U3 можно подключить одновременно
	PortsPerDevice = 3   // A, B, C
	IdentityStart  = 135 // идентификатор первого слота
)

//Port номер логического порта внутри устройства.
type Port int

const (
	PortA Port = iota
	PortB
	PortC
)

func (p Port) String() string {
	switch p {
	case PortA:
		return "A"
	case PortB:
		return "B"
	case PortC:
		return "C"
	default:
		return "?"
	}
}

//Identity внешний идентификатор устройства или одного из его портов.
//Базовый идентификатор слота i равен IdentityStart + i*PortsPerDevice,
//порты получают base+0, base+1, base+2.
type Identity int

//Port идентификатор порта p этого устройства.
func (id Identity) Port(p Port) Identity {
	return id.Base() + Identity(p)
}

//Base идентификатор слота, к которому относится id.
func (id Identity) Base() Identity {
	if id < IdentityStart {
		return id
	}
	return id - (id-IdentityStart)%PortsPerDevice
}

//PortOf номер порта, который адресует id.
func (id Identity) PortOf() Port {
	return Port((id - IdentityStart) % PortsPerDevice)
}

// slotIndex - единственное место, где идентификатор переводится в индекс таблицы.
func slotIndex(id Identity) (index int, err error) {
	if id < IdentityStart {
		err = fmt.Errorf("identity %d: %w", id, ErrInvalidIdentity)
		return
	}
	index = int(id-IdentityStart) / PortsPerDevice
	if index >= MaxDevices {
		err = fmt.Errorf("identity %d: %w", id, ErrInvalidIdentity)
	}
	return
}

func slotIdentity(index int) Identity {
	return Identity(IdentityStart + index*PortsPerDevice)
}

//Registry таблица подключённых устройств. Блокировка держится только
//на время просмотра таблицы, никогда во время обмена с устройством.
type Registry struct {
	mu    sync.Mutex
	slots [MaxDevices]*Device
}

//NewRegistry пустая таблица.
func NewRegistry() *Registry {
	return &Registry{}
}

//Allocate занимает первый свободный слот.
func (r *Registry) Allocate(dev *Device) (id Identity, err error) {
	if nil == dev {
		err = errors.New("Allocate(): nil device")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.slots {
		if nil == r.slots[i] {
			r.slots[i] = dev
			id = slotIdentity(i)
			logDebug(componentRegistry, "slot allocated", "slot", i, "identity", int(id))
			return
		}
	}
	err = ErrNoRoom
	return
}

//Release освобождает слот. Освобождение пустого слота - ошибка вызывающего.
func (r *Registry) Release(id Identity) error {
	_, err := r.take(id, nil)
	return err
}

// take освобождает слот и возвращает устройство, которое в нём было.
// Если want не nil, слот освобождается только когда в нём именно want.
func (r *Registry) take(id Identity, want *Device) (dev *Device, err error) {
	index, err := slotIndex(id)
	if nil != err {
		logWarn(componentRegistry, "release of invalid identity", "identity", int(id))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dev = r.slots[index]
	if nil == dev {
		logWarn(componentRegistry, "release of empty slot", "identity", int(id))
		err = fmt.Errorf("identity %d: %w", id, ErrSlotEmpty)
		return
	}
	if nil != want && dev != want {
		dev = nil
		err = fmt.Errorf("identity %d: %w", id, ErrNotFound)
		return
	}
	r.slots[index] = nil
	logDebug(componentRegistry, "slot released", "slot", index, "identity", int(id))
	return
}

//Lookup устройство по идентификатору любого из его портов.
func (r *Registry) Lookup(id Identity) (dev *Device, err error) {
	index, err := slotIndex(id)
	if nil != err {
		return
	}

	r.mu.Lock()
	dev = r.slots[index]
	r.mu.Unlock()

	if nil == dev {
		err = fmt.Errorf("identity %d: %w", id, ErrNotFound)
	}
	return
}

//Identities базовые идентификаторы всех занятых слотов.
func (r *Registry) Identities() (ids []Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, dev := range r.slots {
		if nil != dev {
			ids = append(ids, slotIdentity(i))
		}
	}
	return
}
