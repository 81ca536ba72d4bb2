package labjack

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//Config настройки драйвера и программ из cmd/.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Ports   PortsConfig   `yaml:"ports"`
	Logging LoggingConfig `yaml:"logging"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
}

//DeviceConfig как найти и открыть U3.
type DeviceConfig struct {
	VendorID        uint16 `yaml:"vendor_id"`
	ProductID       uint16 `yaml:"product_id"`
	Interface       int    `yaml:"interface"`
	DevicePath      string `yaml:"device_path"` // только windows
	TimeoutMs       int    `yaml:"timeout_ms"`
	WatchIntervalMs int    `yaml:"watch_interval_ms"`
}

//PortsConfig параметры портов A, B и C.
type PortsConfig struct {
	ToggleLine         uint8  `yaml:"toggle_line"`
	DefaultFrequency   uint8  `yaml:"default_frequency"`
	TemperatureChannel uint8  `yaml:"temperature_channel"`
	AirlockChannel     uint8  `yaml:"airlock_channel"`
	AirlockThreshold   uint16 `yaml:"airlock_threshold"`
	TimeUnitMs         int    `yaml:"time_unit_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

//MQTTConfig публикация показаний; пустой Broker отключает её.
type MQTTConfig struct {
	Broker            string `yaml:"broker"`
	ClientID          string `yaml:"client_id"`
	TopicPrefix       string `yaml:"topic_prefix"`
	PublishIntervalMs int    `yaml:"publish_interval_ms"`
}

//DefaultConfig настройки для U3 в исходной схеме подключения.
//LoadConfig читает YAML поверх них, поэтому явный 0 в файле (AIN0, порог 0)
//сохраняется, а отсутствующие поля берутся отсюда.
func DefaultConfig() Config {
	opts := DefaultOptions()
	return Config{
		Device: DeviceConfig{
			VendorID:        IDVendorLabJack,
			ProductID:       IDProductU3,
			TimeoutMs:       int(maxDelayUSB.Milliseconds()),
			WatchIntervalMs: 1000,
		},
		Ports: PortsConfig{
			ToggleLine:         opts.ToggleLine,
			DefaultFrequency:   opts.DefaultFrequency,
			TemperatureChannel: opts.TemperatureChannel,
			AirlockChannel:     opts.AirlockChannel,
			AirlockThreshold:   opts.AirlockThreshold,
			TimeUnitMs:         int(opts.TimeUnit.Milliseconds()),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		MQTT: MQTTConfig{
			ClientID:          "labjackd",
			TopicPrefix:       "labjack",
			PublishIntervalMs: 5000,
		},
	}
}

//LoadConfig читает YAML поверх DefaultConfig и проверяет результат.
func LoadConfig(path string) (cfg Config, err error) {
	data, err := os.ReadFile(path)
	if nil != err {
		err = fmt.Errorf("LoadConfig(): %w", err)
		return
	}
	cfg = DefaultConfig()
	if err = yaml.Unmarshal(data, &cfg); nil != err {
		err = fmt.Errorf("LoadConfig(): %s: %w", path, err)
		return
	}
	cfg.normalize()
	if err = cfg.Validate(); nil != err {
		err = fmt.Errorf("LoadConfig(): %s: %w", path, err)
	}
	return
}

// normalize заменяет нули там, где ноль не имеет смысла: идентификаторы USB,
// интервалы, период порта A и строковые поля.
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Device.VendorID == 0 {
		c.Device.VendorID = def.Device.VendorID
	}
	if c.Device.ProductID == 0 {
		c.Device.ProductID = def.Device.ProductID
	}
	if c.Device.TimeoutMs == 0 {
		c.Device.TimeoutMs = def.Device.TimeoutMs
	}
	if c.Device.WatchIntervalMs == 0 {
		c.Device.WatchIntervalMs = def.Device.WatchIntervalMs
	}
	if c.Ports.DefaultFrequency == 0 {
		c.Ports.DefaultFrequency = def.Ports.DefaultFrequency
	}
	if c.Ports.TimeUnitMs == 0 {
		c.Ports.TimeUnitMs = def.Ports.TimeUnitMs
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = def.MQTT.TopicPrefix
	}
	if c.MQTT.PublishIntervalMs == 0 {
		c.MQTT.PublishIntervalMs = def.MQTT.PublishIntervalMs
	}
}

//Validate проверяет значения, которые normalize не исправляет.
func (c Config) Validate() error {
	var errs []error
	if c.Device.TimeoutMs < 0 {
		errs = append(errs, errors.New("device.timeout_ms must be >= 0"))
	}
	if c.Device.WatchIntervalMs < 0 {
		errs = append(errs, errors.New("device.watch_interval_ms must be >= 0"))
	}
	if c.Device.Interface < 0 {
		errs = append(errs, errors.New("device.interface must be >= 0"))
	}
	if c.Ports.ToggleLine > 19 {
		errs = append(errs, fmt.Errorf("ports.toggle_line %d: U3 has lines 0..19", c.Ports.ToggleLine))
	}
	if c.Ports.AirlockChannel < eioFirstAIN || c.Ports.AirlockChannel >= eioFirstAIN+8 {
		errs = append(errs, fmt.Errorf("ports.airlock_channel %d: must be an EIO input (8..15)", c.Ports.AirlockChannel))
	}
	if c.Ports.TemperatureChannel > ChannelGround {
		errs = append(errs, fmt.Errorf("ports.temperature_channel %d out of range", c.Ports.TemperatureChannel))
	}
	if c.Ports.TimeUnitMs < 0 {
		errs = append(errs, errors.New("ports.time_unit_ms must be > 0"))
	}
	if c.MQTT.PublishIntervalMs < 0 {
		errs = append(errs, errors.New("mqtt.publish_interval_ms must be > 0"))
	}
	return errors.Join(errs...)
}

//Timeout таймаут одной bulk-передачи.
func (c DeviceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

//WatchInterval период проверки подключения устройства.
func (c DeviceConfig) WatchInterval() time.Duration {
	return time.Duration(c.WatchIntervalMs) * time.Millisecond
}

//Options параметры портов для Driver.
func (c PortsConfig) Options() Options {
	opts := DefaultOptions()
	opts.ToggleLine = c.ToggleLine
	opts.DefaultFrequency = c.DefaultFrequency
	opts.TemperatureChannel = c.TemperatureChannel
	opts.AirlockChannel = c.AirlockChannel
	opts.AirlockThreshold = c.AirlockThreshold
	opts.TimeUnit = time.Duration(c.TimeUnitMs) * time.Millisecond
	return opts
}
