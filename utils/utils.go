package utils

import (
	jsoniter "github.com/json-iterator/go"
)

// JSON is the process-wide JSON codec. jsoniter keeps the hot
// capability/packet marshalling off encoding/json reflection costs.
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary
