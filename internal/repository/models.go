package repository

// Models lists every persistence model, in dependency order, for AutoMigrate.
func Models() []interface{} {
	return []interface{}{
		&ClientModel{},
		&PetModel{},
		&AvailabilityModel{},
		&CouponModel{},
		&CouponUsageModel{},
		&BookingModel{},
		&BookingPetModel{},
		&PaymentModel{},
		&AdditionalChargeModel{},
		&SubscriptionModel{},
		&CreditBatchModel{},
		&CreditTransactionModel{},
	}
}
