// Package mqtt connects the bridge to an MQTT broker.
//
// The broker is optional. When enabled it carries the state store's bus:
// current states are mirrored retained under <root>/state/..., other
// systems write commands to <root>/set/... and edit object definitions
// under <root>/object/.... The bridge's online status and LWT use
// <root>/system/status and component health goes to <root>/health/<name>.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllSets(), client.QoS(),
//	    func(topic string, payload []byte) error {
//	        id, _ := topics.SetKey(topic)
//	        ...
//	    })
package mqtt
