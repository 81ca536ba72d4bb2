package main

import (
	"encoding/json"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"labjack"
)

const publishTimeout = 5 * time.Second

//publisher публикует JSON в топики <topic_prefix>/<имя>. Без брокера
//только пишет в журнал то, что отправил бы.
type publisher struct {
	client mqtt.Client
	prefix string
	log    *slog.Logger
}

func connect(cfg labjack.MQTTConfig, log *slog.Logger) (*publisher, error) {
	p := &publisher{prefix: cfg.TopicPrefix, log: log.With("component", "mqtt")}
	if "" == cfg.Broker {
		p.log.Info("no broker configured, publishing disabled")
		return p, nil
	}

	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetWill(p.topic("status"), `{"state":"offline"}`, 1, true)

	c := mqtt.NewClient(opts)
	if tok := c.Connect(); tok.Wait() && nil != tok.Error() {
		return nil, tok.Error()
	}
	p.client = c
	p.log.Info("connected", "broker", cfg.Broker)
	return p, nil
}

func (p *publisher) topic(name string) string {
	return p.prefix + "/" + name
}

func (p *publisher) publish(name string, retained bool, v any) {
	data, err := json.Marshal(v)
	if nil != err {
		p.log.Error("marshal", "topic", name, "error", err)
		return
	}
	if nil == p.client {
		p.log.Debug("publish", "topic", p.topic(name), "payload", string(data))
		return
	}
	tok := p.client.Publish(p.topic(name), 1, retained, data)
	if !tok.WaitTimeout(publishTimeout) {
		p.log.Warn("publish timed out", "topic", p.topic(name))
		return
	}
	if err := tok.Error(); nil != err {
		p.log.Error("publish failed", "topic", p.topic(name), "error", err)
	}
}

func (p *publisher) close() {
	if nil == p.client {
		return
	}
	p.publish("status", true, statusMessage{State: "offline", At: time.Now()})
	p.client.Disconnect(250)
}

type statusMessage struct {
	State    string    `json:"state"`
	Identity int       `json:"identity,omitempty"`
	At       time.Time `json:"at"`
}

type telemetryMessage struct {
	Identity        int       `json:"identity"`
	Celsius         *int32    `json:"celsius,omitempty"`
	ToggleRemaining uint32    `json:"toggle_remaining"`
	Airlock         string    `json:"airlock"`
	At              time.Time `json:"at"`
}

type airlockMessage struct {
	Identity int       `json:"identity"`
	State    string    `json:"state"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
}
