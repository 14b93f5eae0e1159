package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"unit_id",
			"agent_id",
			"start_date",
			"end_date",
			"start_time",
			"end_time",
			"status",
			"property_address",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"unit_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"agent_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"start_date": bson.M{
				"bsonType": "date",
			},

			"end_date": bson.M{
				"bsonType": "date",
			},

			"start_time": bson.M{
				"bsonType": "string",
				"pattern":  "^([01][0-9]|2[0-3]):[0-5][0-9]$",
			},

			"end_time": bson.M{
				"bsonType": "string",
				"pattern":  "^([01][0-9]|2[0-3]):[0-5][0-9]$",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"approved",
					"rejected",
					"completed",
					"cancelled",
					"waitlisted",
				},
			},

			"is_urgent": bson.M{
				"bsonType": "bool",
			},

			"waitlist_for_booking_id": bson.M{
				"bsonType":  "string",
				"maxLength": 24,
			},

			"property_address": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 200,
			},

			"pickup_confirmed_at": bson.M{
				"bsonType": []string{"date", "null"},
			},

			"return_confirmed_at": bson.M{
				"bsonType": []string{"date", "null"},
			},

			"is_late_cancellation": bson.M{
				"bsonType": "bool",
			},

			"calendar_event_refs": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "string",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
