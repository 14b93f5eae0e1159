package validators

import "go.mongodb.org/mongo-driver/bson"

var CameraUnitValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"status",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"available",
					"in_use",
					"maintenance",
				},
			},

			"current_booking_id": bson.M{
				"bsonType":  "string",
				"maxLength": 24,
			},

			"maintenance_notes": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
